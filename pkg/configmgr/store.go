package configmgr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamctl/pkg/models"
)

const defaultListLimit = 50

// Store persists the append-only config snapshot log in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a snapshot store on the given database and
// initializes its schema.
func NewStore(database *sql.DB) (*Store, error) {
	store := &Store{db: database}
	if _, err := database.ExecContext(context.Background(), Schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize snapshot schema: %w", models.ErrDatabase, err)
	}
	return store, nil
}

// Insert appends a new snapshot to the log and returns it with its id.
func (s *Store) Insert(snapshot models.ConfigSnapshot) (*models.ConfigSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO config_snapshots (node_id, config_hash, config_body, notes, applied, applied_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshot.NodeID, snapshot.ConfigHash, snapshot.ConfigBody, snapshot.Notes,
		snapshot.Applied, snapshot.AppliedBy, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	snapshotID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	snapshot.ID = snapshotID
	snapshot.CreatedAt = now
	return &snapshot, nil
}

// MarkApplied flips a snapshot's applied flag to true. The flag never
// reverts; calling this twice is harmless.
func (s *Store) MarkApplied(snapshotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE config_snapshots SET applied = TRUE WHERE id = ?`, snapshotID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: snapshot %d", models.ErrNotFound, snapshotID)
	}
	return nil
}

// Get retrieves a snapshot by id.
func (s *Store) Get(snapshotID int64) (*models.ConfigSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT id, node_id, config_hash, config_body, notes, applied, applied_by, created_at
		 FROM config_snapshots WHERE id = ?`, snapshotID)

	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %d", models.ErrNotFound, snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return snapshot, nil
}

// LatestApplied returns the most recent applied snapshot for the scope:
// the node's own history if nodeID is set and non-empty, otherwise the
// fleet-wide history. Returns nil without error when no snapshot exists.
func (s *Store) LatestApplied(nodeID *int64) (*models.ConfigSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nodeID != nil {
		snapshot, err := s.latestAppliedWhere(`node_id = ?`, *nodeID)
		if err != nil || snapshot != nil {
			return snapshot, err
		}
		// A node with no history of its own inherits the fleet-wide config.
	}
	return s.latestAppliedWhere(`node_id IS NULL`)
}

func (s *Store) latestAppliedWhere(where string, args ...interface{}) (*models.ConfigSnapshot, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT id, node_id, config_hash, config_body, notes, applied, applied_by, created_at
		 FROM config_snapshots WHERE applied = TRUE AND `+where+`
		 ORDER BY id DESC LIMIT 1`, args...)

	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return snapshot, nil
}

// List returns snapshots newest-first, optionally scoped to one node.
func (s *Store) List(nodeID *int64, limit int) ([]models.ConfigSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, node_id, config_hash, config_body, notes, applied, applied_by, created_at
	          FROM config_snapshots`
	args := []interface{}{}
	if nodeID != nil {
		query += ` WHERE node_id = ?`
		args = append(args, *nodeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []models.ConfigSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		snapshots = append(snapshots, *snapshot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*models.ConfigSnapshot, error) {
	var (
		snapshot models.ConfigSnapshot
		nodeID   sql.NullInt64
	)
	err := row.Scan(
		&snapshot.ID, &nodeID, &snapshot.ConfigHash, &snapshot.ConfigBody,
		&snapshot.Notes, &snapshot.Applied, &snapshot.AppliedBy, &snapshot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nodeID.Valid {
		value := nodeID.Int64
		snapshot.NodeID = &value
	}
	return &snapshot, nil
}
