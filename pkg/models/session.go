package models

// Protocol identifies the transport protocol of a viewer session.
type Protocol string

const (
	ProtocolRTSP   Protocol = "rtsp"
	ProtocolRTSPS  Protocol = "rtsps"
	ProtocolWebRTC Protocol = "webrtc"
	ProtocolRTMP   Protocol = "rtmp"
	ProtocolSRT    Protocol = "srt"
)

// KnownProtocol reports whether p is a protocol the kick coordinator
// can dispatch.
func KnownProtocol(p Protocol) bool {
	switch p {
	case ProtocolRTSP, ProtocolRTSPS, ProtocolWebRTC, ProtocolRTMP, ProtocolSRT:
		return true
	}
	return false
}

// ViewerSession is one active viewer connection as reported by a node.
// Sessions are sourced live from nodes and never persisted.
type ViewerSession struct {
	ID              string   `json:"id"`
	NodeID          int64    `json:"node_id"`
	NodeName        string   `json:"node_name"`
	Path            string   `json:"path"`
	ClientIP        string   `json:"client_ip"`
	ClientPort      int      `json:"client_port"`
	Protocol        Protocol `json:"protocol"`
	Transport       string   `json:"transport,omitempty"`
	State           string   `json:"state"`
	BytesSent       int64    `json:"bytes_sent"`
	DurationSeconds int64    `json:"duration_seconds"`
}

// SessionSummary aggregates counts over a filtered session set.
type SessionSummary struct {
	Total      int              `json:"total"`
	ByProtocol map[string]int   `json:"by_protocol"`
	ByNode     map[string]int   `json:"by_node"`
}

// SessionList is the result of a live session aggregation.
type SessionList struct {
	Sessions   []ViewerSession   `json:"sessions"`
	Summary    SessionSummary    `json:"summary"`
	NodeErrors map[string]string `json:"node_errors,omitempty"`
}
