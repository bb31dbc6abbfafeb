package models

import "time"

// ConfigSnapshot is one immutable entry in the append-only config history.
// NodeID is nil for fleet-wide snapshots. Applied flips from false to true
// exactly once, when the push to the node succeeds; it never reverts.
type ConfigSnapshot struct {
	ID         int64     `json:"id"`
	NodeID     *int64    `json:"node_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigBody string    `json:"config_body"`
	Notes      string    `json:"notes"`
	Applied    bool      `json:"applied"`
	AppliedBy  string    `json:"applied_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidationResult reports config validation findings.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ConfigDiff reports the difference between a proposed config body and
// the most recent applicable snapshot.
type ConfigDiff struct {
	HasChanges  bool   `json:"has_changes"`
	UnifiedDiff string `json:"unified_diff"`
}

// ConfigPlan is the result of a dry-run validation of a proposed config.
type ConfigPlan struct {
	Validation ValidationResult `json:"validation"`
	Diff       ConfigDiff       `json:"diff"`
	CanApply   bool             `json:"can_apply"`
}
