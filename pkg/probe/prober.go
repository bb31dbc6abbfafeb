package probe

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// NodeLookup resolves node ids to nodes. Satisfied by the fleet store.
type NodeLookup interface {
	GetNode(nodeID int64) (*models.Node, error)
}

// Prober issues active health probes. It is stateless; any number of
// probes may run concurrently.
type Prober struct {
	nodes      NodeLookup
	client     nodeclient.Client
	thresholds Thresholds
	timeout    time.Duration
	workers    int
}

// New creates a prober with the given thresholds and per-probe timeout.
func New(nodes NodeLookup, client nodeclient.Client, thresholds Thresholds, timeout time.Duration, workers int) *Prober {
	if workers < 1 {
		workers = 1
	}
	return &Prober{
		nodes:      nodes,
		client:     client,
		thresholds: thresholds,
		timeout:    timeout,
		workers:    workers,
	}
}

// ProbeStream probes one stream through its owning node's control API.
// Probe failures are reported in the result, never as an error: a
// stream whose node cannot answer is an unhealthy stream.
func (p *Prober) ProbeStream(ctx context.Context, stream models.Stream) models.ProbeResult {
	node, err := p.nodes.GetNode(stream.NodeID)
	if err != nil {
		return Failed(fmt.Errorf("resolve node %d: %w", stream.NodeID, err))
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	state, err := p.client.GetPathState(probeCtx, *node, stream.Path)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		log.Debug().
			Int64("stream_id", stream.ID).
			Str("path", stream.Path).
			Err(err).
			Msg("Probe failed")
		result := Failed(err)
		result.LatencyMs = latency
		return result
	}

	result := Classify(state, p.thresholds)
	result.LatencyMs = latency
	return result
}

// ProbeURL probes an ad-hoc source URL by checking reachability of its
// endpoint. Codec and frame metrics are not available without a node in
// the path; the result reports signal presence and latency only.
func (p *Prober) ProbeURL(ctx context.Context, rawURL, protocol string) models.ProbeResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return models.ProbeResult{
			Status: models.StatusUnknown,
			Issues: []string{"invalid url"},
			Error:  fmt.Sprintf("invalid url: %s", rawURL),
		}
	}

	host := parsed.Host
	if parsed.Port() == "" {
		if port := defaultPort(protocol, parsed.Scheme); port != "" {
			host = net.JoinHostPort(parsed.Hostname(), port)
		}
	}

	dialer := net.Dialer{Timeout: p.timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", host)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return models.ProbeResult{
			Status:    models.StatusUnhealthy,
			LatencyMs: latency,
			Issues:    []string{"source unreachable"},
			Error:     err.Error(),
		}
	}
	_ = conn.Close()

	return models.ProbeResult{
		IsHealthy: true,
		Status:    models.StatusHealthy,
		LatencyMs: latency,
		Issues:    []string{},
	}
}

// ProbeAll probes the given streams with a bounded worker pool, calling
// handle for each result. Ordering across streams is not guaranteed.
func (p *Prober) ProbeAll(ctx context.Context, streams []models.Stream, handle func(models.Stream, models.ProbeResult)) {
	jobs := make(chan models.Stream)

	var waitGroup sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for stream := range jobs {
				handle(stream, p.ProbeStream(ctx, stream))
			}
		}()
	}

	for _, stream := range streams {
		select {
		case jobs <- stream:
		case <-ctx.Done():
			close(jobs)
			waitGroup.Wait()
			return
		}
	}
	close(jobs)
	waitGroup.Wait()
}

func defaultPort(protocol, scheme string) string {
	switch protocol {
	case "rtsp":
		return "554"
	case "rtsps":
		return "322"
	case "rtmp":
		return "1935"
	case "srt":
		return "8890"
	}
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
