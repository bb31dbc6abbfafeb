package retention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamctl/pkg/models"
)

const defaultPerPage = 50

// ListFilters narrows a recording listing.
type ListFilters struct {
	StreamID    int64
	SegmentType models.SegmentType
	Archived    *bool
	Page        int
	PerPage     int
}

// Store manages recording metadata in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a recording store on the given database and
// initializes its schema.
func NewStore(database *sql.DB) (*Store, error) {
	store := &Store{db: database}
	if _, err := database.ExecContext(context.Background(), Schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize recording schema: %w", models.ErrDatabase, err)
	}
	return store, nil
}

const recordingColumns = `id, stream_id, stream_path, segment_type, start_time, duration_seconds,
	file_size, file_path, is_archived, expires_at`

// Register records a completed recording segment.
func (s *Store) Register(recording models.Recording) (*models.Recording, error) {
	if recording.FilePath == "" {
		return nil, fmt.Errorf("%w: file_path is required", models.ErrValidation)
	}
	if recording.StreamPath == "" {
		return nil, fmt.Errorf("%w: stream_path is required", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO recordings (stream_id, stream_path, segment_type, start_time, duration_seconds,
		 file_size, file_path, is_archived, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recording.StreamID, recording.StreamPath, recording.SegmentType, recording.StartTime,
		recording.DurationSeconds, recording.FileSize, recording.FilePath,
		recording.IsArchived, recording.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	recordingID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	recording.ID = recordingID
	return &recording, nil
}

// Get retrieves one recording by id.
func (s *Store) Get(recordingID int64) (*models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, recordingID)
	recording, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recording %d", models.ErrNotFound, recordingID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return recording, nil
}

// List returns recordings matching the filters plus the match count.
func (s *Store) List(filters ListFilters) ([]models.Recording, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := ` WHERE 1=1`
	args := []interface{}{}
	if filters.StreamID > 0 {
		where += ` AND stream_id = ?`
		args = append(args, filters.StreamID)
	}
	if filters.SegmentType != "" {
		where += ` AND segment_type = ?`
		args = append(args, filters.SegmentType)
	}
	if filters.Archived != nil {
		where += ` AND is_archived = ?`
		args = append(args, *filters.Archived)
	}

	ctx := context.Background()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`+where, args...).Scan(&total); err != nil {
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

	query := `SELECT ` + recordingColumns + ` FROM recordings` + where + ` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var recordings []models.Recording
	for rows.Next() {
		recording, err := scanRecording(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		recordings = append(recordings, *recording)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return recordings, total, nil
}

// Archive marks a recording archived, taking it out of the eviction
// pool permanently.
func (s *Store) Archive(recordingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE recordings SET is_archived = TRUE WHERE id = ?`, recordingID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: recording %d", models.ErrNotFound, recordingID)
	}
	return nil
}

// Delete removes a recording's metadata row.
func (s *Store) Delete(recordingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`DELETE FROM recordings WHERE id = ?`, recordingID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: recording %d", models.ErrNotFound, recordingID)
	}
	return nil
}

// Stats aggregates recording totals for the retention status view.
func (s *Store) Stats() (models.RecordingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := models.RecordingStats{ByType: map[string]int64{}}

	var totalSize sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(file_size), 0),
		        COALESCE(SUM(CASE WHEN is_archived THEN 1 ELSE 0 END), 0)
		 FROM recordings`,
	).Scan(&stats.Total, &totalSize, &stats.Archived)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	stats.TotalSizeGB = float64(totalSize.Int64) / (1 << 30)

	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_type, COUNT(*) FROM recordings GROUP BY segment_type`)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			segmentType string
			count       int64
		)
		if err := rows.Scan(&segmentType, &count); err != nil {
			return stats, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		stats.ByType[segmentType] = count
	}
	if err = rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return stats, nil
}

// ExpiredUnarchived returns unarchived recordings whose expiry has
// passed, oldest first.
func (s *Store) ExpiredUnarchived(now time.Time) ([]models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+recordingColumns+` FROM recordings
		 WHERE is_archived = FALSE AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY start_time ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var recordings []models.Recording
	for rows.Next() {
		recording, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		recordings = append(recordings, *recording)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return recordings, nil
}

// EvictionCandidates returns unarchived recordings under the storage
// root, oldest first. Archived recordings are never candidates.
func (s *Store) EvictionCandidates(root string) ([]models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+recordingColumns+` FROM recordings
		 WHERE is_archived = FALSE AND file_path LIKE ?
		 ORDER BY start_time ASC`,
		root+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var recordings []models.Recording
	for rows.Next() {
		recording, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		recordings = append(recordings, *recording)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return recordings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row rowScanner) (*models.Recording, error) {
	var (
		recording models.Recording
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&recording.ID, &recording.StreamID, &recording.StreamPath, &recording.SegmentType,
		&recording.StartTime, &recording.DurationSeconds, &recording.FileSize,
		&recording.FilePath, &recording.IsArchived, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		expires := expiresAt.Time
		recording.ExpiresAt = &expires
	}
	return &recording, nil
}
