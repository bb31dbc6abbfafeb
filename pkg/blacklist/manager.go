package blacklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
)

// blockDurations are the named durations a block request may use. Zero
// means permanent.
var blockDurations = map[string]time.Duration{
	"5m":        5 * time.Minute,
	"15m":       15 * time.Minute,
	"30m":       30 * time.Minute,
	"1h":        time.Hour,
	"6h":        6 * time.Hour,
	"24h":       24 * time.Hour,
	"7d":        7 * 24 * time.Hour,
	"30d":       30 * 24 * time.Hour,
	"permanent": 0,
}

// BlockRequest describes a new blacklist entry.
type BlockRequest struct {
	IPAddress   string  `json:"ip_address"`
	Reason      string  `json:"reason"`
	BlockedBy   string  `json:"blocked_by"`
	Duration    string  `json:"duration"`
	PathPattern *string `json:"path_pattern"`
	NodeID      *int64  `json:"node_id"`
}

// Manager maintains the viewer IP blacklist in SQLite. Expired entries
// are swept lazily on read; no background goroutine is needed.
type Manager struct {
	db *sql.DB
	mu sync.Mutex
}

// NewManager creates a blacklist manager and initializes its schema.
func NewManager(database *sql.DB) (*Manager, error) {
	manager := &Manager{db: database}
	if _, err := database.ExecContext(context.Background(), Schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize blacklist schema: %w", models.ErrDatabase, err)
	}
	return manager, nil
}

const blockedColumns = `id, ip_address, reason, blocked_by, path_pattern, node_id, expires_at, created_at`

// Block adds a blacklist entry. The duration must be one of the named
// durations; "permanent" never expires.
func (m *Manager) Block(request BlockRequest) (*models.BlockedIP, error) {
	if net.ParseIP(request.IPAddress) == nil {
		return nil, fmt.Errorf("%w: invalid IP address %q", models.ErrValidation, request.IPAddress)
	}
	duration, ok := blockDurations[request.Duration]
	if !ok {
		return nil, fmt.Errorf("%w: unknown duration %q", models.ErrValidation, request.Duration)
	}

	var expiresAt *time.Time
	if duration > 0 {
		expires := time.Now().Add(duration)
		expiresAt = &expires
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.db.ExecContext(context.Background(),
		`INSERT INTO blocked_ips (ip_address, reason, blocked_by, path_pattern, node_id, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		request.IPAddress, request.Reason, request.BlockedBy,
		request.PathPattern, request.NodeID, expiresAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s is already blocked for this scope", models.ErrValidation, request.IPAddress)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	entryID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}

	log.Info().
		Str("ip", request.IPAddress).
		Str("duration", request.Duration).
		Str("blocked_by", request.BlockedBy).
		Msg("IP blocked")

	return m.getLocked(entryID)
}

// Unblock removes one entry by id.
func (m *Manager) Unblock(entryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.db.ExecContext(context.Background(),
		`DELETE FROM blocked_ips WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: blacklist entry %d", models.ErrNotFound, entryID)
	}
	return nil
}

// UnblockAddress removes every entry for the address, regardless of
// scope.
func (m *Manager) UnblockAddress(ipAddress string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.db.ExecContext(context.Background(),
		`DELETE FROM blocked_ips WHERE ip_address = ?`, ipAddress)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: no blocks for %s", models.ErrNotFound, ipAddress)
	}
	return affected, nil
}

// IsBlocked reports whether the address is currently denied for the
// given stream path and node. An entry matches when its scope fields
// are unset or agree with the query; expired entries never match.
func (m *Manager) IsBlocked(ipAddress, streamPath string, nodeID int64) (*models.BlockedIP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sweepExpiredLocked(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(context.Background(),
		`SELECT `+blockedColumns+` FROM blocked_ips WHERE ip_address = ?`, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		entry, err := scanBlocked(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		if entry.NodeID != nil && *entry.NodeID != nodeID {
			continue
		}
		if entry.PathPattern != nil && !matchPattern(*entry.PathPattern, streamPath) {
			continue
		}
		return entry, nil
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return nil, nil
}

// List returns all active entries, newest first.
func (m *Manager) List() ([]models.BlockedIP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sweepExpiredLocked(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(context.Background(),
		`SELECT `+blockedColumns+` FROM blocked_ips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.BlockedIP
	for rows.Next() {
		entry, err := scanBlocked(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return entries, nil
}

// Stats summarizes active entries.
func (m *Manager) Stats() (models.BlacklistStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.BlacklistStats{}
	if err := m.sweepExpiredLocked(); err != nil {
		return stats, err
	}

	err := m.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at IS NULL THEN 1 ELSE 0 END), 0)
		 FROM blocked_ips`,
	).Scan(&stats.Total, &stats.Permanent)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	stats.Temporary = stats.Total - stats.Permanent
	return stats, nil
}

func (m *Manager) getLocked(entryID int64) (*models.BlockedIP, error) {
	row := m.db.QueryRowContext(context.Background(),
		`SELECT `+blockedColumns+` FROM blocked_ips WHERE id = ?`, entryID)
	entry, err := scanBlocked(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: blacklist entry %d", models.ErrNotFound, entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	return entry, nil
}

func (m *Manager) sweepExpiredLocked() error {
	result, err := m.db.ExecContext(context.Background(),
		`DELETE FROM blocked_ips WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrDatabase, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		log.Debug().Int64("count", affected).Msg("Expired blacklist entries removed")
	}
	return nil
}

// matchPattern matches a stream path against a block's path pattern
// using shell-style globbing. A malformed pattern matches nothing.
func matchPattern(pattern, streamPath string) bool {
	if pattern == streamPath {
		return true
	}
	matched, err := path.Match(pattern, streamPath)
	return err == nil && matched
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlocked(row rowScanner) (*models.BlockedIP, error) {
	var (
		entry       models.BlockedIP
		pathPattern sql.NullString
		nodeID      sql.NullInt64
		expiresAt   sql.NullTime
	)
	err := row.Scan(
		&entry.ID, &entry.IPAddress, &entry.Reason, &entry.BlockedBy,
		&pathPattern, &nodeID, &expiresAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pathPattern.Valid {
		pattern := pathPattern.String
		entry.PathPattern = &pattern
	}
	if nodeID.Valid {
		id := nodeID.Int64
		entry.NodeID = &id
	}
	if expiresAt.Valid {
		expires := expiresAt.Time
		entry.ExpiresAt = &expires
	}
	return &entry, nil
}
