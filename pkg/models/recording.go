package models

import "time"

// SegmentType classifies how a recording segment was produced.
type SegmentType string

const (
	SegmentContinuous SegmentType = "continuous"
	SegmentEvent      SegmentType = "event"
	SegmentManual     SegmentType = "manual"
)

// Recording is the metadata for one completed recording segment.
type Recording struct {
	ID              int64       `json:"id"`
	StreamID        int64       `json:"stream_id"`
	StreamPath      string      `json:"stream_path"`
	SegmentType     SegmentType `json:"segment_type"`
	StartTime       time.Time   `json:"start_time"`
	DurationSeconds int64       `json:"duration_seconds"`
	FileSize        int64       `json:"file_size"`
	FilePath        string      `json:"file_path"`
	IsArchived      bool        `json:"is_archived"`
	ExpiresAt       *time.Time  `json:"expires_at"`
}

// DiskUsage represents disk space information for a storage root.
type DiskUsage struct {
	SpaceUsed      int64 `json:"space_used"`      // Bytes used
	SpaceAvailable int64 `json:"space_available"` // Bytes available
	TotalSpace     int64 `json:"total_space"`     // Total bytes
}

// UsagePercent returns used space as a percentage of total.
func (d DiskUsage) UsagePercent() float64 {
	if d.TotalSpace <= 0 {
		return 0
	}
	return float64(d.SpaceUsed) / float64(d.TotalSpace) * 100
}

// RetentionStatus is the aggregate view of recordings and disk pressure.
type RetentionStatus struct {
	Recordings RecordingStats `json:"recordings"`
	Disk       DiskStats      `json:"disk"`
}

// RecordingStats summarizes stored recordings.
type RecordingStats struct {
	Total       int64            `json:"total"`
	TotalSizeGB float64          `json:"total_size_gb"`
	Archived    int64            `json:"archived"`
	ByType      map[string]int64 `json:"by_type"`
}

// DiskStats summarizes disk pressure across storage roots.
type DiskStats struct {
	UsagePercent float64 `json:"usage_percent"`
	FreeGB       float64 `json:"free_gb"`
	IsCritical   bool    `json:"is_critical"`
}

// CleanupResult reports the outcome of a retention sweep.
type CleanupResult struct {
	DeletedCount int   `json:"deleted_count"`
	FreedBytes   int64 `json:"freed_bytes"`
	DryRun       bool  `json:"dry_run"`
}
