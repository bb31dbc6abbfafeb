package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"

	"github.com/hashicorp/go-retryablehttp"
)

// sessionEndpoints maps a protocol to the node API resource that lists
// and kicks its sessions.
var sessionEndpoints = map[models.Protocol]string{
	models.ProtocolRTSP:   "rtspsessions",
	models.ProtocolRTSPS:  "rtspssessions",
	models.ProtocolRTMP:   "rtmpconns",
	models.ProtocolSRT:    "srtconns",
	models.ProtocolWebRTC: "webrtcsessions",
}

// HTTPClient talks to a node's v3 control API over HTTP.
type HTTPClient struct {
	client         *retryablehttp.Client
	requestTimeout time.Duration
}

// NewHTTPClient creates a node client with bounded retries. Connection
// errors are retried; HTTP error responses are forwarded as-is.
func NewHTTPClient(retryMax int, retryWaitMin, retryWaitMax, requestTimeout time.Duration) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = nil // Disable retryablehttp logging
	client.CheckRetry = connectionRetryPolicy

	return &HTTPClient{
		client:         client,
		requestTimeout: requestTimeout,
	}
}

// connectionRetryPolicy only retries on connection/timeout errors, not
// HTTP status errors, so node error responses surface instead of being
// retried into a generic failure.
func connectionRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // retryablehttp handles the error
	}
	return false, nil
}

// APIError represents an error response from a node control API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "node API returned " + http.StatusText(e.StatusCode)
}

func (c *HTTPClient) Ping(ctx context.Context, node models.Node) (*NodeState, error) {
	var state NodeState
	if err := c.getJSON(ctx, node, "/v3/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) GetPathState(ctx context.Context, node models.Node, path string) (*PathState, error) {
	var state PathState
	endpoint := "/v3/paths/get/" + url.PathEscape(path)
	if err := c.getJSON(ctx, node, endpoint, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) PushConfig(ctx context.Context, node models.Node, body string) error {
	endpoint := "/v3/config/global/patch"
	return c.do(ctx, node, http.MethodPost, endpoint, "application/yaml", strings.NewReader(body), nil)
}

func (c *HTTPClient) ListSessions(ctx context.Context, node models.Node) ([]models.ViewerSession, error) {
	var sessions []models.ViewerSession
	for protocol, resource := range sessionEndpoints {
		var page struct {
			Items []nodeSession `json:"items"`
		}
		endpoint := "/v3/" + resource + "/list"
		if err := c.getJSON(ctx, node, endpoint, &page); err != nil {
			return nil, fmt.Errorf("list %s sessions: %w", protocol, err)
		}
		for _, item := range page.Items {
			sessions = append(sessions, item.toViewerSession(node, protocol))
		}
	}
	return sessions, nil
}

func (c *HTTPClient) KickSession(ctx context.Context, node models.Node, protocol models.Protocol, sessionID string) error {
	resource, ok := sessionEndpoints[protocol]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedProtocol, protocol)
	}
	endpoint := "/v3/" + resource + "/kick/" + url.PathEscape(sessionID)
	return c.do(ctx, node, http.MethodPost, endpoint, "", nil, nil)
}

func (c *HTTPClient) RunAction(ctx context.Context, node models.Node, action Action, path string) error {
	endpoint := "/v3/paths/actions/" + url.PathEscape(string(action)) + "/" + url.PathEscape(path)
	return c.do(ctx, node, http.MethodPost, endpoint, "", nil, nil)
}

// nodeSession is the wire shape of one session in a node's list response.
type nodeSession struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remoteAddr"`
	Transport  string    `json:"transport"`
	State      string    `json:"state"`
	BytesSent  int64     `json:"bytesSent"`
	Created    time.Time `json:"created"`
}

func (s nodeSession) toViewerSession(node models.Node, protocol models.Protocol) models.ViewerSession {
	session := models.ViewerSession{
		ID:        s.ID,
		NodeID:    node.ID,
		NodeName:  node.Name,
		Path:      s.Path,
		Protocol:  protocol,
		Transport: s.Transport,
		State:     s.State,
		BytesSent: s.BytesSent,
	}
	if host, portStr, err := net.SplitHostPort(s.RemoteAddr); err == nil {
		session.ClientIP = host
		if port, convErr := strconv.Atoi(portStr); convErr == nil {
			session.ClientPort = port
		}
	} else {
		session.ClientIP = s.RemoteAddr
	}
	if !s.Created.IsZero() {
		session.DurationSeconds = int64(time.Since(s.Created).Seconds())
	}
	return session
}

// getJSON performs a GET against the node and decodes the JSON response.
func (c *HTTPClient) getJSON(ctx context.Context, node models.Node, endpoint string, out interface{}) error {
	return c.do(ctx, node, http.MethodGet, endpoint, "", nil, out)
}

// do performs one request against the node's control API. Connection
// failures are wrapped as NodeUnreachableError so callers can classify
// them as transient.
func (c *HTTPClient) do(ctx context.Context, node models.Node, method, endpoint, contentType string, body io.Reader, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, method, node.ControlBaseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.NodeUnreachableError{NodeID: node.ID, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close node response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", models.ErrNotFound, method, endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode node response: %w", err)
		}
	}
	return nil
}
