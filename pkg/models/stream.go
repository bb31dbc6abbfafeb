package models

import "time"

// StreamStatus is the health classification of a monitored stream.
type StreamStatus string

const (
	StatusUnknown   StreamStatus = "unknown"
	StatusHealthy   StreamStatus = "healthy"
	StatusDegraded  StreamStatus = "degraded"
	StatusUnhealthy StreamStatus = "unhealthy"
)

// Bad reports whether the status warrants remediation.
func (s StreamStatus) Bad() bool {
	return s == StatusDegraded || s == StatusUnhealthy
}

// Stream represents a monitored media path on a fleet node.
type Stream struct {
	ID               int64        `json:"id"`
	NodeID           int64        `json:"node_id"`
	Path             string       `json:"path"`
	Name             string       `json:"name"`
	SourceURL        string       `json:"source_url"`
	Status           StreamStatus `json:"status"`
	FPS              float64      `json:"fps"`
	BitrateKbps      float64      `json:"bitrate"`
	LatencyMs        int64        `json:"latency_ms"`
	AutoRemediate    bool         `json:"auto_remediate"`
	RecordingEnabled bool         `json:"recording_enabled"`
	RemediationCount int          `json:"remediation_count"`
	LastRemediation  *time.Time   `json:"last_remediation,omitempty"`
	LastCheck        *time.Time   `json:"last_check,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
