package health

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"streamctl/pkg/db"
	"streamctl/pkg/models"
)

// StoreTestSuite tests the stream Store functionality.
type StoreTestSuite struct {
	suite.Suite
	tempDir string
	store   *Store
}

// SetupSuite runs once before all tests.
func (s *StoreTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "health-store-test-*")
	s.Require().NoError(err)
}

// TearDownSuite runs once after all tests.
func (s *StoreTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest runs before each test.
func (s *StoreTestSuite) SetupTest() {
	dbPath := filepath.Join(s.tempDir, "test.db")
	os.Remove(dbPath)

	database, err := db.Open(dbPath)
	s.Require().NoError(err)

	s.store, err = NewStore(database)
	s.Require().NoError(err)
}

func (s *StoreTestSuite) createStream(nodeID int64, path string) *models.Stream {
	stream, err := s.store.CreateStream(models.Stream{
		NodeID:    nodeID,
		Path:      path,
		Name:      "Cam " + path,
		SourceURL: "rtsp://camera.internal/" + path,
	})
	s.Require().NoError(err)
	return stream
}

// TestCreateStream tests stream registration.
func (s *StoreTestSuite) TestCreateStream() {
	stream := s.createStream(1, "lobby")
	s.NotZero(stream.ID)
	s.Equal(models.StatusUnknown, stream.Status)
}

// TestCreateStreamDuplicatePath tests the per-node path uniqueness rule.
func (s *StoreTestSuite) TestCreateStreamDuplicatePath() {
	s.createStream(1, "lobby")

	_, err := s.store.CreateStream(models.Stream{NodeID: 1, Path: "lobby"})
	s.ErrorIs(err, models.ErrValidation)

	// Same path on a different node is fine.
	_, err = s.store.CreateStream(models.Stream{NodeID: 2, Path: "lobby"})
	s.NoError(err)
}

// TestCreateStreamValidation tests stream field validation.
func (s *StoreTestSuite) TestCreateStreamValidation() {
	_, err := s.store.CreateStream(models.Stream{NodeID: 1})
	s.ErrorIs(err, models.ErrValidation)

	_, err = s.store.CreateStream(models.Stream{Path: "lobby"})
	s.ErrorIs(err, models.ErrValidation)

	_, err = s.store.CreateStream(models.Stream{NodeID: 1, Path: "has space"})
	s.ErrorIs(err, models.ErrValidation)
}

// TestGetStreamNotFound tests retrieval of a missing stream.
func (s *StoreTestSuite) TestGetStreamNotFound() {
	_, err := s.store.GetStream(9999)
	s.ErrorIs(err, models.ErrNotFound)
}

// TestListStreamsFilters tests listing with filters and pagination.
func (s *StoreTestSuite) TestListStreamsFilters() {
	s.createStream(1, "lobby")
	s.createStream(1, "garage")
	s.createStream(2, "lobby-rear")

	streams, total, err := s.store.ListStreams(ListFilters{NodeID: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(streams, 2)

	streams, total, err = s.store.ListStreams(ListFilters{Search: "lobby"})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(streams, 2)

	streams, total, err = s.store.ListStreams(ListFilters{Page: 2, PerPage: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(streams, 1)
}

// TestListStreamsByStatus tests the status filter.
func (s *StoreTestSuite) TestListStreamsByStatus() {
	stream := s.createStream(1, "lobby")
	s.createStream(1, "garage")

	s.Require().NoError(s.store.UpdateHealth(stream.ID, models.StatusUnhealthy, 0, 0, 0, time.Now()))

	streams, total, err := s.store.ListStreams(ListFilters{Status: models.StatusUnhealthy})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(stream.ID, streams[0].ID)
}

// TestUpdateStreamKeepsID tests that edits never change the stream id.
func (s *StoreTestSuite) TestUpdateStreamKeepsID() {
	stream := s.createStream(1, "lobby")

	stream.Path = "lobby-renamed"
	stream.AutoRemediate = false
	s.Require().NoError(s.store.UpdateStream(*stream))

	updated, err := s.store.GetStream(stream.ID)
	s.Require().NoError(err)
	s.Equal(stream.ID, updated.ID)
	s.Equal("lobby-renamed", updated.Path)
	s.False(updated.AutoRemediate)
}

// TestUpdateHealth tests the health field writer.
func (s *StoreTestSuite) TestUpdateHealth() {
	stream := s.createStream(1, "lobby")

	checkTime := time.Now()
	s.Require().NoError(s.store.UpdateHealth(stream.ID, models.StatusHealthy, 30, 2500, 12, checkTime))

	updated, err := s.store.GetStream(stream.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusHealthy, updated.Status)
	s.Equal(30.0, updated.FPS)
	s.Equal(2500.0, updated.BitrateKbps)
	s.Require().NotNil(updated.LastCheck)
	s.WithinDuration(checkTime, *updated.LastCheck, time.Second)
}

// TestMarkRemediated tests remediation bookkeeping.
func (s *StoreTestSuite) TestMarkRemediated() {
	stream := s.createStream(1, "lobby")

	s.Require().NoError(s.store.MarkRemediated(stream.ID, time.Now()))
	s.Require().NoError(s.store.MarkRemediated(stream.ID, time.Now()))

	updated, err := s.store.GetStream(stream.ID)
	s.Require().NoError(err)
	s.Equal(2, updated.RemediationCount)
	s.NotNil(updated.LastRemediation)
}

// TestPathExists tests the config validator's path lookup.
func (s *StoreTestSuite) TestPathExists() {
	s.createStream(1, "lobby")

	exists, err := s.store.PathExists("lobby")
	s.NoError(err)
	s.True(exists)

	exists, err = s.store.PathExists("nonexistent")
	s.NoError(err)
	s.False(exists)
}

// TestDeleteStream tests stream removal.
func (s *StoreTestSuite) TestDeleteStream() {
	stream := s.createStream(1, "lobby")

	s.Require().NoError(s.store.DeleteStream(stream.ID))

	_, err := s.store.GetStream(stream.ID)
	s.ErrorIs(err, models.ErrNotFound)

	s.ErrorIs(s.store.DeleteStream(stream.ID), models.ErrNotFound)
}

// TestStoreSuite runs the test suite.
func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
