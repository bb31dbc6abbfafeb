package remediation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"streamctl/pkg/db"
	"streamctl/pkg/fleet"
	"streamctl/pkg/health"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// stubProber returns scripted probe results in order, repeating the
// last one once the script runs out.
type stubProber struct {
	results []models.ProbeResult
	calls   int
}

func (p *stubProber) ProbeStream(ctx context.Context, stream models.Stream) models.ProbeResult {
	index := p.calls
	if index >= len(p.results) {
		index = len(p.results) - 1
	}
	p.calls++
	return p.results[index]
}

// EngineTestSuite tests the remediation engine.
type EngineTestSuite struct {
	suite.Suite
	tempDir     string
	fleetStore  *fleet.Store
	streamStore *health.Store
	registry    *health.Registry
	client      *nodeclient.MockClient
	node        *models.Node
	stream      *models.Stream
}

// SetupSuite runs once before all tests.
func (s *EngineTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "remediation-test-*")
	s.Require().NoError(err)
}

// TearDownSuite runs once after all tests.
func (s *EngineTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest runs before each test.
func (s *EngineTestSuite) SetupTest() {
	dbPath := filepath.Join(s.tempDir, "test.db")
	os.Remove(dbPath)

	database, err := db.Open(dbPath)
	s.Require().NoError(err)

	s.fleetStore, err = fleet.NewStore(database)
	s.Require().NoError(err)
	s.streamStore, err = health.NewStore(database)
	s.Require().NoError(err)
	s.registry = health.NewRegistry(s.streamStore)
	s.client = new(nodeclient.MockClient)

	s.node, err = s.fleetStore.CreateNode(models.Node{
		Name:           "edge-1",
		ControlBaseURL: "http://edge-1.internal:9997",
	})
	s.Require().NoError(err)

	s.stream, err = s.streamStore.CreateStream(models.Stream{
		NodeID:        s.node.ID,
		Path:          "lobby",
		AutoRemediate: true,
	})
	s.Require().NoError(err)
}

func (s *EngineTestSuite) newEngine(prober Prober, maxAttempts int) *Engine {
	return NewEngine(s.streamStore, s.fleetStore, s.client, prober, s.registry, Policy{
		MaxAttempts: maxAttempts,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		Actions: []nodeclient.Action{
			nodeclient.ActionRestartSource,
			nodeclient.ActionForceReconnect,
			nodeclient.ActionRefreshSource,
		},
	})
}

func healthyResult() models.ProbeResult {
	return models.ProbeResult{IsHealthy: true, Status: models.StatusHealthy, FPS: 30, BitrateKbps: 2500}
}

func unhealthyResult() models.ProbeResult {
	return models.ProbeResult{Status: models.StatusUnhealthy, Issues: []string{"zero fps"}}
}

// TestRemediateFirstAttemptSucceeds tests success on the first action.
func (s *EngineTestSuite) TestRemediateFirstAttemptSucceeds() {
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionRestartSource, "lobby").Return(nil).Once()

	engine := s.newEngine(&stubProber{results: []models.ProbeResult{healthyResult()}}, 3)
	outcome, err := engine.Remediate(context.Background(), s.stream.ID)

	s.Require().NoError(err)
	s.True(outcome.Success)
	s.Equal(1, outcome.TotalAttempts)
	s.Empty(outcome.LastError)
	s.client.AssertExpectations(s.T())

	// The run is recorded on the stream.
	stream, err := s.streamStore.GetStream(s.stream.ID)
	s.Require().NoError(err)
	s.Equal(1, stream.RemediationCount)
	s.NotNil(stream.LastRemediation)
}

// TestRemediateEscalatesActions tests the action sequence across
// attempts.
func (s *EngineTestSuite) TestRemediateEscalatesActions() {
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionRestartSource, "lobby").Return(nil).Once()
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionForceReconnect, "lobby").Return(nil).Once()

	prober := &stubProber{results: []models.ProbeResult{unhealthyResult(), healthyResult()}}
	engine := s.newEngine(prober, 3)
	outcome, err := engine.Remediate(context.Background(), s.stream.ID)

	s.Require().NoError(err)
	s.True(outcome.Success)
	s.Equal(2, outcome.TotalAttempts)
	s.client.AssertExpectations(s.T())
}

// TestRemediateAttemptCap tests that the attempt cap bounds the run and
// the outcome reports the honest count.
func (s *EngineTestSuite) TestRemediateAttemptCap() {
	s.client.On("RunAction", mock.Anything, *s.node, mock.Anything, "lobby").Return(nil).Times(3)

	engine := s.newEngine(&stubProber{results: []models.ProbeResult{unhealthyResult()}}, 3)
	outcome, err := engine.Remediate(context.Background(), s.stream.ID)

	s.Require().NoError(err)
	s.False(outcome.Success)
	s.Equal(3, outcome.TotalAttempts)
	s.NotEmpty(outcome.LastError)
	s.client.AssertNumberOfCalls(s.T(), "RunAction", 3)
}

// TestRemediateNodeUnreachable tests that an unreachable node counts as
// a failed attempt rather than aborting the run.
func (s *EngineTestSuite) TestRemediateNodeUnreachable() {
	unreachable := models.NodeUnreachableError{NodeID: s.node.ID, Err: errors.New("connection refused")}
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionRestartSource, "lobby").Return(unreachable).Once()
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionForceReconnect, "lobby").Return(nil).Once()

	engine := s.newEngine(&stubProber{results: []models.ProbeResult{healthyResult()}}, 3)
	outcome, err := engine.Remediate(context.Background(), s.stream.ID)

	s.Require().NoError(err)
	s.True(outcome.Success)
	s.Equal(2, outcome.TotalAttempts)
}

// TestRemediateAlreadyInProgress tests the per-stream single-flight
// guard.
func (s *EngineTestSuite) TestRemediateAlreadyInProgress() {
	engine := s.newEngine(&stubProber{results: []models.ProbeResult{healthyResult()}}, 3)

	s.Require().True(engine.acquire(s.stream.ID))
	defer engine.release(s.stream.ID)

	_, err := engine.Remediate(context.Background(), s.stream.ID)
	s.ErrorIs(err, models.ErrAlreadyInProgress)
	s.True(engine.InFlight(s.stream.ID))
}

// TestRemediateStreamNotFound tests remediation of a missing stream.
func (s *EngineTestSuite) TestRemediateStreamNotFound() {
	engine := s.newEngine(&stubProber{results: []models.ProbeResult{healthyResult()}}, 3)
	_, err := engine.Remediate(context.Background(), 9999)
	s.ErrorIs(err, models.ErrNotFound)
	s.False(engine.InFlight(9999))
}

// TestRemediateContextCancelled tests that cancellation ends the run
// with a partial outcome.
func (s *EngineTestSuite) TestRemediateContextCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionRestartSource, "lobby").
		Run(func(args mock.Arguments) { cancel() }).Return(nil).Once()

	engine := s.newEngine(&stubProber{results: []models.ProbeResult{unhealthyResult()}}, 3)
	outcome, err := engine.Remediate(ctx, s.stream.ID)

	s.ErrorIs(err, context.Canceled)
	s.Require().NotNil(outcome)
	s.False(outcome.Success)
	s.Equal(1, outcome.TotalAttempts)
}

// TestRemediateUpdatesHealthState tests that post-action probes flow
// through the health state machine.
func (s *EngineTestSuite) TestRemediateUpdatesHealthState() {
	s.client.On("RunAction", mock.Anything, *s.node, nodeclient.ActionRestartSource, "lobby").Return(nil).Once()

	engine := s.newEngine(&stubProber{results: []models.ProbeResult{healthyResult()}}, 3)
	_, err := engine.Remediate(context.Background(), s.stream.ID)
	s.Require().NoError(err)

	stream, err := s.streamStore.GetStream(s.stream.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusHealthy, stream.Status)
	s.NotNil(stream.LastCheck)
}

// TestSuite runs the test suite.
func TestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
