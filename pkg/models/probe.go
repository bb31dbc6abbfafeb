package models

// ProbeResult is the outcome of a single active health probe.
// It is ephemeral: consumed by the health state machine or returned
// directly to the caller of an ad-hoc probe, never persisted.
type ProbeResult struct {
	IsHealthy   bool         `json:"is_healthy"`
	Status      StreamStatus `json:"status"`
	FPS         float64      `json:"fps"`
	BitrateKbps float64      `json:"bitrate"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Codec       string       `json:"codec"`
	LatencyMs   int64        `json:"latency_ms"`
	Issues      []string     `json:"issues"`
	Error       string       `json:"error,omitempty"`
}

// RemediationOutcome is the result of a remediation run.
type RemediationOutcome struct {
	Success       bool   `json:"success"`
	TotalAttempts int    `json:"total_attempts"`
	LastError     string `json:"last_error,omitempty"`
}
