package fleet

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

// Store manages node metadata in SQLite. It is the only writer of the
// fleet directory; every other component reads nodes through it.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a fleet store on the given database and initializes
// its schema.
func NewStore(database *sql.DB) (*Store, error) {
	store := &Store{db: database}
	if _, err := database.ExecContext(context.Background(), Schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize fleet schema: %w", models.ErrDatabase, err)
	}
	return store, nil
}

// CreateNode registers a new node in the fleet.
func (s *Store) CreateNode(node models.Node) (*models.Node, error) {
	if err := validateNode(node); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO nodes (name, environment, control_base_url, hls_base_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.Name, node.Environment, node.ControlBaseURL, node.HLSBaseURL, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: node name %q already registered", models.ErrValidation, node.Name)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	nodeID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	node.ID = nodeID
	return &node, nil
}

// GetNode retrieves a node by id.
func (s *Store) GetNode(nodeID int64) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node := &models.Node{}
	err := s.db.QueryRowContext(context.Background(),
		`SELECT id, name, environment, control_base_url, hls_base_url FROM nodes WHERE id = ?`,
		nodeID,
	).Scan(&node.ID, &node.Name, &node.Environment, &node.ControlBaseURL, &node.HLSBaseURL)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node %d", models.ErrNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return node, nil
}

// UpdateNode updates a node's mutable fields.
func (s *Store) UpdateNode(node models.Node) error {
	if err := validateNode(node); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE nodes SET name = ?, environment = ?, control_base_url = ?, hls_base_url = ?, updated_at = ?
		 WHERE id = ?`,
		node.Name, node.Environment, node.ControlBaseURL, node.HLSBaseURL, time.Now(), node.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: node %d", models.ErrNotFound, node.ID)
	}
	return nil
}

// DeleteNode removes a node from the fleet.
func (s *Store) DeleteNode(nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(), `DELETE FROM nodes WHERE id = ?`, nodeID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: node %d", models.ErrNotFound, nodeID)
	}
	return nil
}

// ListNodes returns all nodes ordered by name.
func (s *Store) ListNodes() ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, name, environment, control_base_url, hls_base_url FROM nodes ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []models.Node
	for rows.Next() {
		var node models.Node
		if err := rows.Scan(&node.ID, &node.Name, &node.Environment, &node.ControlBaseURL, &node.HLSBaseURL); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		nodes = append(nodes, node)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return nodes, nil
}

func validateNode(node models.Node) error {
	if node.Name == "" {
		return fmt.Errorf("%w: node name is required", models.ErrValidation)
	}
	if node.ControlBaseURL == "" {
		return fmt.Errorf("%w: control_base_url is required", models.ErrValidation)
	}
	if !strings.HasPrefix(node.ControlBaseURL, "http://") && !strings.HasPrefix(node.ControlBaseURL, "https://") {
		return fmt.Errorf("%w: control_base_url must be an http(s) URL", models.ErrValidation)
	}
	return nil
}
