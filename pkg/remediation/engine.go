package remediation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StreamSource provides the stream records the engine acts on.
// Satisfied by the health store.
type StreamSource interface {
	GetStream(streamID int64) (*models.Stream, error)
	MarkRemediated(streamID int64, at time.Time) error
}

// NodeLookup resolves node ids to nodes. Satisfied by the fleet store.
type NodeLookup interface {
	GetNode(nodeID int64) (*models.Node, error)
}

// Prober issues the fresh probe that follows every remediation attempt.
type Prober interface {
	ProbeStream(ctx context.Context, stream models.Stream) models.ProbeResult
}

// Recorder feeds probe results back through the health state machine so
// remediation outcomes update stream status like any other sample.
type Recorder interface {
	RecordProbe(streamID int64, result models.ProbeResult) (models.StreamStatus, error)
}

// Policy is the bounded-retry remediation policy. All of it comes from
// configuration.
type Policy struct {
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	Actions     []nodeclient.Action
}

// Engine runs the corrective action sequence for unhealthy streams.
// At most one remediation run per stream is in flight at a time; a
// second request fails fast instead of queuing, so a flapping stream
// never accumulates compounding actions.
type Engine struct {
	streams  StreamSource
	nodes    NodeLookup
	client   nodeclient.Client
	prober   Prober
	recorder Recorder
	policy   Policy

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// NewEngine creates a remediation engine.
func NewEngine(streams StreamSource, nodes NodeLookup, client nodeclient.Client, prober Prober, recorder Recorder, policy Policy) *Engine {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if len(policy.Actions) == 0 {
		policy.Actions = []nodeclient.Action{nodeclient.ActionRestartSource}
	}
	if policy.BackoffMin <= 0 {
		policy.BackoffMin = 2 * time.Second
	}
	if policy.BackoffMax < policy.BackoffMin {
		policy.BackoffMax = policy.BackoffMin
	}
	return &Engine{
		streams:  streams,
		nodes:    nodes,
		client:   client,
		prober:   prober,
		recorder: recorder,
		policy:   policy,
		inflight: make(map[int64]struct{}),
	}
}

// Remediate runs the corrective action sequence for one stream.
// Success is declared on the first post-action probe that classifies
// healthy. A node that cannot be reached counts as a failed attempt and
// is retried under the same backoff as any other failure.
func (e *Engine) Remediate(ctx context.Context, streamID int64) (*models.RemediationOutcome, error) {
	if !e.acquire(streamID) {
		return nil, fmt.Errorf("%w: remediation for stream %d", models.ErrAlreadyInProgress, streamID)
	}
	defer e.release(streamID)

	stream, err := e.streams.GetStream(streamID)
	if err != nil {
		return nil, err
	}
	node, err := e.nodes.GetNode(stream.NodeID)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.With("remediation").With().
		Str("run_id", runID).
		Int64("stream_id", streamID).
		Str("path", stream.Path).
		Logger()

	logger.Info().Int("max_attempts", e.policy.MaxAttempts).Msg("Remediation started")

	outcome := &models.RemediationOutcome{}
	backoff := e.policy.BackoffMin

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		outcome.TotalAttempts = attempt
		action := e.policy.Actions[(attempt-1)%len(e.policy.Actions)]

		if err := e.client.RunAction(ctx, *node, action, stream.Path); err != nil {
			outcome.LastError = err.Error()
			var unreachable models.NodeUnreachableError
			if errors.As(err, &unreachable) {
				logger.Warn().Int("attempt", attempt).Str("action", string(action)).Msg("Node unreachable during remediation")
			} else {
				logger.Warn().Int("attempt", attempt).Str("action", string(action)).Err(err).Msg("Remediation action failed")
			}
		} else {
			result := e.prober.ProbeStream(ctx, *stream)
			status := result.Status
			if e.recorder != nil {
				if recorded, recErr := e.recorder.RecordProbe(streamID, result); recErr == nil {
					status = recorded
				}
			}

			if status == models.StatusHealthy {
				outcome.Success = true
				outcome.LastError = ""
				e.finish(streamID, logger, outcome)
				return outcome, nil
			}
			outcome.LastError = fmt.Sprintf("stream still %s after %s", status, action)
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			outcome.LastError = ctx.Err().Error()
			e.finish(streamID, logger, outcome)
			return outcome, ctx.Err()
		}

		backoff *= 2
		if backoff > e.policy.BackoffMax {
			backoff = e.policy.BackoffMax
		}
	}

	e.finish(streamID, logger, outcome)
	return outcome, nil
}

// InFlight reports whether a remediation run is active for the stream.
func (e *Engine) InFlight(streamID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, held := e.inflight[streamID]
	return held
}

// finish records the completed run on the stream and logs the outcome.
func (e *Engine) finish(streamID int64, logger zerolog.Logger, outcome *models.RemediationOutcome) {
	if err := e.streams.MarkRemediated(streamID, time.Now()); err != nil {
		logger.Error().Err(err).Msg("Failed to record remediation run")
	}

	event := logger.Info()
	if !outcome.Success {
		event = logger.Warn()
	}
	event.
		Bool("success", outcome.Success).
		Int("total_attempts", outcome.TotalAttempts).
		Str("last_error", outcome.LastError).
		Msg("Remediation finished")
}

func (e *Engine) acquire(streamID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, held := e.inflight[streamID]; held {
		return false
	}
	e.inflight[streamID] = struct{}{}
	return true
}

func (e *Engine) release(streamID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, streamID)
}
