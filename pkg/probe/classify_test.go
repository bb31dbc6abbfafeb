package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// ClassifyTestSuite tests probe result classification.
type ClassifyTestSuite struct {
	suite.Suite
	thresholds Thresholds
}

// SetupSuite runs once before all tests.
func (s *ClassifyTestSuite) SetupSuite() {
	s.thresholds = Thresholds{MinFPS: 5, MinBitrateKbps: 100}
}

// TestClassify tests the classification rules.
func (s *ClassifyTestSuite) TestClassify() {
	testCases := []struct {
		state   nodeclient.PathState
		status  models.StreamStatus
		message string
	}{
		{
			nodeclient.PathState{Ready: true, FPS: 30, BitrateKbps: 2500, Tracks: []string{"H264"}},
			models.StatusHealthy,
			"good metrics classify healthy",
		},
		{
			nodeclient.PathState{Ready: false},
			models.StatusUnhealthy,
			"not ready classifies unhealthy",
		},
		{
			nodeclient.PathState{Ready: true},
			models.StatusUnknown,
			"ready with no metrics and no tracks stays unknown",
		},
		{
			nodeclient.PathState{Ready: true, Tracks: []string{"H264"}},
			models.StatusUnhealthy,
			"zero fps with tracks classifies unhealthy",
		},
		{
			nodeclient.PathState{Ready: true, FPS: 2, BitrateKbps: 2500, Tracks: []string{"H264"}},
			models.StatusDegraded,
			"fps below floor classifies degraded",
		},
		{
			nodeclient.PathState{Ready: true, FPS: 30, BitrateKbps: 50, Tracks: []string{"H264"}},
			models.StatusDegraded,
			"bitrate below floor classifies degraded",
		},
		{
			nodeclient.PathState{Ready: true, FPS: 30, BitrateKbps: 2500, Tracks: []string{"H264"}, Issues: []string{"packet loss"}},
			models.StatusDegraded,
			"node-reported issues classify degraded",
		},
	}

	for _, tc := range testCases {
		result := Classify(&tc.state, s.thresholds)
		s.Equal(tc.status, result.Status, tc.message)
		s.Equal(tc.status == models.StatusHealthy, result.IsHealthy, tc.message)
	}
}

// TestClassifyIssueList tests that classification explains itself.
func (s *ClassifyTestSuite) TestClassifyIssueList() {
	result := Classify(&nodeclient.PathState{Ready: false}, s.thresholds)
	s.Contains(result.Issues, "no signal: path not ready")

	result = Classify(&nodeclient.PathState{Ready: true, FPS: 2, BitrateKbps: 500, Tracks: []string{"H264"}}, s.thresholds)
	s.Contains(result.Issues, "fps below floor")
}

// TestClassifyZeroThresholds tests that unset floors disable checks.
func (s *ClassifyTestSuite) TestClassifyZeroThresholds() {
	result := Classify(&nodeclient.PathState{Ready: true, FPS: 1, BitrateKbps: 1, Tracks: []string{"H264"}}, Thresholds{})
	s.Equal(models.StatusHealthy, result.Status)
}

// TestFailed tests the failed-probe result.
func (s *ClassifyTestSuite) TestFailed() {
	result := Failed(errors.New("connection refused"))
	s.Equal(models.StatusUnhealthy, result.Status)
	s.False(result.IsHealthy)
	s.Equal("connection refused", result.Error)
}

// TestSuite runs the test suite.
func TestSuite(t *testing.T) {
	suite.Run(t, new(ClassifyTestSuite))
}
