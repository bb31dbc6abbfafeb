package health

import (
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
)

// Registry owns one state machine entry per monitored stream. Entries
// are guarded individually so probes for different streams never
// contend, while samples for the same stream apply in order.
type Registry struct {
	store   *Store
	mu      sync.Mutex
	entries map[int64]*entry

	// onBadTransition fires when a stream with auto_remediate enters a
	// bad-state run. Called at most once per contiguous run.
	onBadTransition func(streamID int64)
}

type entry struct {
	mu        sync.Mutex
	status    models.StreamStatus
	lastCheck time.Time
	inBadRun  bool
}

// NewRegistry creates the health state machine registry.
func NewRegistry(store *Store) *Registry {
	return &Registry{
		store:   store,
		entries: make(map[int64]*entry),
	}
}

// OnBadTransition installs the remediation trigger. The callback runs on
// the probing goroutine; it should hand off long work itself.
func (r *Registry) OnBadTransition(fn func(streamID int64)) {
	r.onBadTransition = fn
}

// RecordProbe applies one probe sample to a stream's state machine and
// returns the resulting status. last_check advances unconditionally,
// even when the status is unchanged, so staleness stays observable.
func (r *Registry) RecordProbe(streamID int64, result models.ProbeResult) (models.StreamStatus, error) {
	stream, err := r.store.GetStream(streamID)
	if err != nil {
		return "", err
	}

	e := r.entry(streamID, stream)

	e.mu.Lock()

	now := time.Now()
	if !now.After(e.lastCheck) {
		// The clock may not have advanced between samples.
		now = e.lastCheck.Add(time.Nanosecond)
	}

	newStatus := result.Status
	if err := r.store.UpdateHealth(streamID, newStatus, result.FPS, result.BitrateKbps, result.LatencyMs, now); err != nil {
		e.mu.Unlock()
		return "", err
	}

	oldStatus := e.status
	trigger := stream.AutoRemediate && newStatus.Bad() && !e.inBadRun

	e.status = newStatus
	e.inBadRun = newStatus.Bad()
	e.lastCheck = now
	e.mu.Unlock()

	if oldStatus != newStatus {
		log.Info().
			Int64("stream_id", streamID).
			Str("path", stream.Path).
			Str("from", string(oldStatus)).
			Str("to", string(newStatus)).
			Msg("Stream status changed")
	}

	if trigger && r.onBadTransition != nil {
		r.onBadTransition(streamID)
	}

	return newStatus, nil
}

// GetStatus returns the current status of a stream.
func (r *Registry) GetStatus(streamID int64) (models.StreamStatus, error) {
	r.mu.Lock()
	e, ok := r.entries[streamID]
	r.mu.Unlock()

	if ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.status, nil
	}

	stream, err := r.store.GetStream(streamID)
	if err != nil {
		return "", err
	}
	return stream.Status, nil
}

// LastCheck returns the time of the most recent sample for a stream, or
// the zero time if none has been recorded this process lifetime.
func (r *Registry) LastCheck(streamID int64) time.Time {
	r.mu.Lock()
	e, ok := r.entries[streamID]
	r.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCheck
}

// Forget drops the in-memory entry for a deleted stream.
func (r *Registry) Forget(streamID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, streamID)
}

// entry returns the state machine entry for a stream, creating it from
// the persisted status on first sight.
func (r *Registry) entry(streamID int64, stream *models.Stream) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[streamID]
	if !ok {
		e = &entry{
			status:   stream.Status,
			inBadRun: stream.Status.Bad(),
		}
		if stream.LastCheck != nil {
			e.lastCheck = *stream.LastCheck
		}
		r.entries[streamID] = e
	}
	return e
}
