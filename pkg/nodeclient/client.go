package nodeclient

import (
	"context"

	"streamctl/pkg/models"
)

// PathState is the live state of one media path as reported by a node.
type PathState struct {
	Name          string   `json:"name"`
	Ready         bool     `json:"ready"`
	SourceType    string   `json:"source_type"`
	Tracks        []string `json:"tracks"`
	BytesReceived int64    `json:"bytes_received"`
	Readers       int      `json:"readers"`
	FPS           float64  `json:"fps"`
	BitrateKbps   float64  `json:"bitrate_kbps"`
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Codec         string   `json:"codec"`
	Issues        []string `json:"issues"`
}

// NodeState is the answer to a node liveness check.
type NodeState struct {
	Version   string `json:"version"`
	PathCount int    `json:"path_count"`
	Uptime    int64  `json:"uptime_seconds"`
}

// Action is a remediation action a node can execute against a path.
type Action string

const (
	ActionRestartSource  Action = "restart_source"
	ActionForceReconnect Action = "force_reconnect"
	ActionRefreshSource  Action = "refresh_source"
)

// Client is the capability interface against a node's control API.
// Node-protocol differences stay behind this boundary; the core
// components only ever see these six operations.
type Client interface {
	// Ping checks node liveness and returns basic node state.
	Ping(ctx context.Context, node models.Node) (*NodeState, error)

	// GetPathState fetches the live state of one media path.
	GetPathState(ctx context.Context, node models.Node, path string) (*PathState, error)

	// PushConfig pushes a full configuration body to the node.
	PushConfig(ctx context.Context, node models.Node, body string) error

	// ListSessions returns all active viewer sessions on the node,
	// across every protocol the node serves.
	ListSessions(ctx context.Context, node models.Node) ([]models.ViewerSession, error)

	// KickSession terminates one viewer session. The protocol selects
	// the node-side termination mechanism and must already be
	// validated by the caller.
	KickSession(ctx context.Context, node models.Node, protocol models.Protocol, sessionID string) error

	// RunAction executes a remediation action against a path.
	RunAction(ctx context.Context, node models.Node, action Action, path string) error
}
