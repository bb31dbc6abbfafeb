package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"streamctl/pkg/models"
)

const defaultPerPage = 50

// ListFilters narrows a stream listing.
type ListFilters struct {
	NodeID  int64
	Status  models.StreamStatus
	Search  string
	Page    int
	PerPage int
}

// Store manages stream registrations in SQLite. Health fields are
// mutated only through UpdateHealth and MarkRemediated; everything else
// changes via explicit edit operations.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a stream store on the given database and initializes
// its schema.
func NewStore(database *sql.DB) (*Store, error) {
	store := &Store{db: database}
	if _, err := database.ExecContext(context.Background(), Schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize stream schema: %w", models.ErrDatabase, err)
	}
	return store, nil
}

const streamColumns = `id, node_id, path, name, source_url, status, fps, bitrate_kbps, latency_ms,
	auto_remediate, recording_enabled, remediation_count, last_remediation, last_check, created_at, updated_at`

// CreateStream registers a new stream for monitoring.
func (s *Store) CreateStream(stream models.Stream) (*models.Stream, error) {
	if err := validateStream(stream); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO streams (node_id, path, name, source_url, status, auto_remediate, recording_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stream.NodeID, stream.Path, stream.Name, stream.SourceURL, models.StatusUnknown,
		stream.AutoRemediate, stream.RecordingEnabled, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: path %q already registered on node %d", models.ErrValidation, stream.Path, stream.NodeID)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	streamID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	stream.ID = streamID
	stream.Status = models.StatusUnknown
	stream.CreatedAt = now
	stream.UpdatedAt = now
	return &stream, nil
}

// GetStream retrieves a stream by id.
func (s *Store) GetStream(streamID int64) (*models.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+streamColumns+` FROM streams WHERE id = ?`, streamID)
	stream, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: stream %d", models.ErrNotFound, streamID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return stream, nil
}

// ListStreams returns streams matching the filters plus the unpaginated
// match count.
func (s *Store) ListStreams(filters ListFilters) ([]models.Stream, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := ` WHERE 1=1`
	args := []interface{}{}
	if filters.NodeID > 0 {
		where += ` AND node_id = ?`
		args = append(args, filters.NodeID)
	}
	if filters.Status != "" {
		where += ` AND status = ?`
		args = append(args, filters.Status)
	}
	if filters.Search != "" {
		where += ` AND (path LIKE ? OR name LIKE ?)`
		pattern := "%" + filters.Search + "%"
		args = append(args, pattern, pattern)
	}

	ctx := context.Background()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM streams`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + streamColumns + ` FROM streams` + where + ` ORDER BY path LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var streams []models.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		streams = append(streams, *stream)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return streams, total, nil
}

// ListAll returns every registered stream, for the monitor sweep.
func (s *Store) ListAll() ([]models.Stream, error) {
	streams, _, err := s.ListStreams(ListFilters{PerPage: 1 << 30})
	return streams, err
}

// UpdateStream updates a stream's editable fields. The stream id is
// stable: changing the path never changes the id.
func (s *Store) UpdateStream(stream models.Stream) error {
	if err := validateStream(stream); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE streams SET node_id = ?, path = ?, name = ?, source_url = ?,
		 auto_remediate = ?, recording_enabled = ?, updated_at = ?
		 WHERE id = ?`,
		stream.NodeID, stream.Path, stream.Name, stream.SourceURL,
		stream.AutoRemediate, stream.RecordingEnabled, time.Now(), stream.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: path %q already registered on node %d", models.ErrValidation, stream.Path, stream.NodeID)
		}
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return checkAffected(result, stream.ID)
}

// DeleteStream removes a stream from monitoring.
func (s *Store) DeleteStream(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(), `DELETE FROM streams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return checkAffected(result, id)
}

// UpdateHealth writes the health fields produced by the state machine.
func (s *Store) UpdateHealth(id int64, status models.StreamStatus, fps, bitrateKbps float64, latencyMs int64, lastCheck time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE streams SET status = ?, fps = ?, bitrate_kbps = ?, latency_ms = ?, last_check = ?, updated_at = ?
		 WHERE id = ?`,
		status, fps, bitrateKbps, latencyMs, lastCheck, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return checkAffected(result, id)
}

// MarkRemediated records one completed remediation run on the stream.
func (s *Store) MarkRemediated(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE streams SET remediation_count = remediation_count + 1, last_remediation = ?, updated_at = ?
		 WHERE id = ?`,
		at, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return checkAffected(result, id)
}

// PathExists reports whether any stream is registered under the path.
// Used by the config validator's cross-reference checks.
func (s *Store) PathExists(path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists bool
	err := s.db.QueryRowContext(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM streams WHERE path = ?)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return exists, nil
}

func checkAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: stream %d", models.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStream(row rowScanner) (*models.Stream, error) {
	var (
		stream          models.Stream
		lastRemediation sql.NullTime
		lastCheck       sql.NullTime
	)
	err := row.Scan(
		&stream.ID, &stream.NodeID, &stream.Path, &stream.Name, &stream.SourceURL,
		&stream.Status, &stream.FPS, &stream.BitrateKbps, &stream.LatencyMs,
		&stream.AutoRemediate, &stream.RecordingEnabled, &stream.RemediationCount,
		&lastRemediation, &lastCheck, &stream.CreatedAt, &stream.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastRemediation.Valid {
		stream.LastRemediation = &lastRemediation.Time
	}
	if lastCheck.Valid {
		stream.LastCheck = &lastCheck.Time
	}
	return &stream, nil
}

func validateStream(stream models.Stream) error {
	if stream.Path == "" {
		return fmt.Errorf("%w: stream path is required", models.ErrValidation)
	}
	if stream.NodeID <= 0 {
		return fmt.Errorf("%w: node_id is required", models.ErrValidation)
	}
	if strings.ContainsAny(stream.Path, " \t\n") {
		return fmt.Errorf("%w: stream path must not contain whitespace", models.ErrValidation)
	}
	return nil
}
