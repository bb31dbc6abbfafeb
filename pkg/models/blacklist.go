package models

import "time"

// BlockedIP is one blacklist entry. PathPattern and NodeID narrow the
// scope of the block; nil means the block applies everywhere. A nil
// ExpiresAt means the block is permanent.
type BlockedIP struct {
	ID          int64      `json:"id"`
	IPAddress   string     `json:"ip_address"`
	Reason      string     `json:"reason"`
	BlockedBy   string     `json:"blocked_by"`
	PathPattern *string    `json:"path_pattern"`
	NodeID      *int64     `json:"node_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Permanent reports whether the entry never expires.
func (b BlockedIP) Permanent() bool {
	return b.ExpiresAt == nil
}

// BlacklistStats summarizes blacklist entries.
type BlacklistStats struct {
	Total     int64 `json:"total"`
	Permanent int64 `json:"permanent"`
	Temporary int64 `json:"temporary"`
}
