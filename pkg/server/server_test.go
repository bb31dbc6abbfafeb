package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"streamctl/pkg/blacklist"
	"streamctl/pkg/db"
	"streamctl/pkg/fleet"
	"streamctl/pkg/health"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
	"streamctl/pkg/retention"
	"streamctl/pkg/sessions"
)

// ServerTestSuite tests the HTTP API handlers.
type ServerTestSuite struct {
	suite.Suite
	tempDir string
	server  *Server
	client  *nodeclient.MockClient

	fleetStore  *fleet.Store
	streamStore *health.Store
}

// SetupSuite runs once before all tests.
func (s *ServerTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "server-test-*")
	s.Require().NoError(err)
}

// TearDownSuite runs once after all tests.
func (s *ServerTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest runs before each test.
func (s *ServerTestSuite) SetupTest() {
	dbPath := filepath.Join(s.tempDir, "test.db")
	os.Remove(dbPath)

	database, err := db.Open(dbPath)
	s.Require().NoError(err)

	s.fleetStore, err = fleet.NewStore(database)
	s.Require().NoError(err)
	s.streamStore, err = health.NewStore(database)
	s.Require().NoError(err)
	recordings, err := retention.NewStore(database)
	s.Require().NoError(err)
	blocked, err := blacklist.NewManager(database)
	s.Require().NoError(err)

	s.client = new(nodeclient.MockClient)

	s.server = New("test-v1.0.0", Components{
		Fleet:      s.fleetStore,
		Streams:    s.streamStore,
		Registry:   health.NewRegistry(s.streamStore),
		Recordings: recordings,
		Retention:  retention.NewEngine(recordings, []string{s.tempDir}, 90),
		Sessions:   sessions.NewRegistry(s.fleetStore, s.client),
		Blacklist:  blocked,
	})
	s.server.setupRoutes()
}

// request runs one request through the router and returns the recorder.
func (s *ServerTestSuite) request(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	s.server.echo.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func (s *ServerTestSuite) addNode(name string) *models.Node {
	node, err := s.fleetStore.CreateNode(models.Node{
		Name:           name,
		ControlBaseURL: "http://" + name + ":9997",
		HLSBaseURL:     "http://" + name + ":8888",
	})
	s.Require().NoError(err)
	return node
}

// TestSetupRoutes tests that routes are properly configured.
func (s *ServerTestSuite) TestSetupRoutes() {
	s.True(s.server.echo.HideBanner)
	s.True(s.server.echo.HidePort)

	routePaths := make(map[string]bool)
	for _, route := range s.server.echo.Routes() {
		routePaths[route.Path] = true
	}

	expectedRoutes := []string{
		"/api/status",
		"/api/nodes",
		"/api/nodes/:id",
		"/api/streams/:id/playback",
		"/api/streams/:id/remediate",
		"/api/retention/cleanup",
		"/api/sessions/kick",
		"/api/config/apply",
		"/api/blacklist/check",
	}
	for _, expectedRoute := range expectedRoutes {
		s.True(routePaths[expectedRoute], "Route %s should exist", expectedRoute)
	}
}

// TestGetStatus tests the status endpoint.
func (s *ServerTestSuite) TestGetStatus() {
	rec := s.request(http.MethodGet, "/api/status", "")
	s.Equal(http.StatusOK, rec.Code)

	response := s.decode(rec)
	s.Equal("ok", response["status"])
	s.Equal("test-v1.0.0", response["version"])
}

// TestNodeLifecycle tests node create, get, and delete.
func (s *ServerTestSuite) TestNodeLifecycle() {
	rec := s.request(http.MethodPost, "/api/nodes",
		`{"name": "edge-a", "control_base_url": "http://edge-a:9997"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	response := s.decode(rec)
	nodeID := int64(response["id"].(float64))
	s.NotZero(nodeID)

	rec = s.request(http.MethodGet, "/api/nodes/1", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("edge-a", s.decode(rec)["name"])

	rec = s.request(http.MethodDelete, "/api/nodes/1", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/api/nodes/1", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestCreateNodeValidation tests that bad node bodies map to 400.
func (s *ServerTestSuite) TestCreateNodeValidation() {
	rec := s.request(http.MethodPost, "/api/nodes",
		`{"name": "", "control_base_url": "http://edge-a:9997"}`)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.request(http.MethodPost, "/api/nodes",
		`{"name": "edge-a", "control_base_url": "ftp://edge-a"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestInvalidPathID tests the :id parameter guard.
func (s *ServerTestSuite) TestInvalidPathID() {
	rec := s.request(http.MethodGet, "/api/nodes/zero", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestCreateStreamUnknownNode tests that a stream cannot point at a
// missing node.
func (s *ServerTestSuite) TestCreateStreamUnknownNode() {
	rec := s.request(http.MethodPost, "/api/streams",
		`{"node_id": 42, "path": "lobby", "source_url": "rtsp://camera.internal/lobby"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestPlaybackURLs tests URL derivation from the owning node.
func (s *ServerTestSuite) TestPlaybackURLs() {
	node := s.addNode("edge-a")
	stream, err := s.streamStore.CreateStream(models.Stream{
		NodeID:    node.ID,
		Path:      "lobby",
		SourceURL: "rtsp://camera.internal/lobby",
	})
	s.Require().NoError(err)

	rec := s.request(http.MethodGet, "/api/streams/1/playback", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	response := s.decode(rec)
	s.Equal(stream.Path, response["path"])

	urls := response["urls"].(map[string]interface{})
	s.Equal("http://edge-a:8888/lobby/index.m3u8", urls["hls"])
	s.Equal("rtsp://edge-a:8554/lobby", urls["rtsp"])
	s.Equal("rtmp://edge-a:1935/lobby", urls["rtmp"])
	s.Equal("srt://edge-a:8890?streamid=read:lobby", urls["srt"])
}

// TestKickSessionErrorMapping tests status codes for kick failures.
func (s *ServerTestSuite) TestKickSessionErrorMapping() {
	node := s.addNode("edge-a")

	// Unsupported protocol is the caller's fault.
	rec := s.request(http.MethodPost, "/api/sessions/kick",
		`{"node_id": 1, "protocol": "hls", "session_id": "s1"}`)
	s.Equal(http.StatusBadRequest, rec.Code)

	// An unreachable node is a bad gateway.
	s.client.On("KickSession", mock.Anything, *node, models.ProtocolRTSP, "s1").
		Return(models.NodeUnreachableError{NodeID: node.ID}).Once()
	rec = s.request(http.MethodPost, "/api/sessions/kick",
		`{"node_id": 1, "protocol": "rtsp", "session_id": "s1"}`)
	s.Equal(http.StatusBadGateway, rec.Code)

	// Success.
	s.client.On("KickSession", mock.Anything, *node, models.ProtocolRTSP, "s1").
		Return(nil).Once()
	rec = s.request(http.MethodPost, "/api/sessions/kick",
		`{"node_id": 1, "protocol": "rtsp", "session_id": "s1"}`)
	s.Equal(http.StatusOK, rec.Code)
}

// TestListSessionsPartial tests that node errors surface in the body,
// not the status code.
func (s *ServerTestSuite) TestListSessionsPartial() {
	nodeA := s.addNode("edge-a")
	nodeB := s.addNode("edge-b")

	s.client.On("ListSessions", mock.Anything, *nodeA).Return([]models.ViewerSession{
		{ID: "s1", NodeName: "edge-a", Path: "lobby", Protocol: models.ProtocolRTSP},
	}, nil).Once()
	s.client.On("ListSessions", mock.Anything, *nodeB).
		Return(nil, models.NodeUnreachableError{NodeID: nodeB.ID}).Once()

	rec := s.request(http.MethodGet, "/api/sessions", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	response := s.decode(rec)
	s.Len(response["sessions"], 1)
	s.Contains(response["node_errors"], "edge-b")
}

// TestRecordingArchive tests recording registration and archival.
func (s *ServerTestSuite) TestRecordingArchive() {
	rec := s.request(http.MethodPost, "/api/recordings",
		`{"stream_id": 1, "stream_path": "lobby", "file_path": "/recordings/lobby/a.mp4", "file_size": 1024}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.request(http.MethodPost, "/api/recordings/1/archive", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/api/recordings/1", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["is_archived"])

	rec = s.request(http.MethodPost, "/api/recordings/99/archive", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestBlacklistCheck tests the viewer connect gate.
func (s *ServerTestSuite) TestBlacklistCheck() {
	rec := s.request(http.MethodPost, "/api/blacklist",
		`{"ip_address": "203.0.113.10", "duration": "1h", "reason": "abuse"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.request(http.MethodGet, "/api/blacklist/check?ip=203.0.113.10&path=lobby", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["blocked"])

	rec = s.request(http.MethodGet, "/api/blacklist/check?ip=203.0.113.99", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(false, s.decode(rec)["blocked"])

	rec = s.request(http.MethodGet, "/api/blacklist/check", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestServerSuite runs the server test suite.
func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
