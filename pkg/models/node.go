package models

import "time"

// Node represents one managed media-server instance in the fleet.
type Node struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Environment    string `json:"environment"`
	ControlBaseURL string `json:"control_base_url"`
	HLSBaseURL     string `json:"hls_base_url"`
}

// NodeStatus represents the live health status of a fleet node.
type NodeStatus struct {
	NodeID      int64     `json:"node_id"`
	Online      bool      `json:"online"`
	LastCheck   time.Time `json:"last_check"`
	LastError   string    `json:"last_error,omitempty"`
	Latency     int64     `json:"latency_ms"`
	ConsecFails int       `json:"consecutive_failures"`
}
