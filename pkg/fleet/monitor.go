package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

const (
	defaultCheckInterval   = 5 * time.Second
	defaultCheckTimeout    = 5 * time.Second
	maxConsecutiveFailures = 3
)

// Monitor tracks live health of fleet nodes with periodic concurrent
// checks against each node's control API. A node is marked offline after
// three consecutive connection failures; HTTP errors mean the node is
// reachable and do not count.
type Monitor struct {
	store         *Store
	client        nodeclient.Client
	statuses      map[int64]*models.NodeStatus
	mu            sync.RWMutex
	checkInterval time.Duration
	checkTimeout  time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewMonitor creates a node health monitor.
func NewMonitor(store *Store, client nodeclient.Client, checkInterval, checkTimeout time.Duration) *Monitor {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	if checkTimeout <= 0 {
		checkTimeout = defaultCheckTimeout
	}
	return &Monitor{
		store:         store,
		client:        client,
		statuses:      make(map[int64]*models.NodeStatus),
		checkInterval: checkInterval,
		checkTimeout:  checkTimeout,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the background health check loop.
func (m *Monitor) Start() {
	// Perform initial health check synchronously
	m.checkAllNodes()

	m.wg.Add(1)
	go m.checkLoop()

	log.Info().
		Dur("interval", m.checkInterval).
		Msg("Fleet monitor started")
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	log.Info().Msg("Fleet monitor stopped")
}

// MarkNodeDead immediately marks a node as offline after a request
// failure observed elsewhere in the control plane.
func (m *Monitor) MarkNodeDead(nodeID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.statuses[nodeID]
	if status == nil {
		status = &models.NodeStatus{NodeID: nodeID}
		m.statuses[nodeID] = status
	}

	if status.Online {
		log.Warn().
			Int64("node_id", nodeID).
			Err(err).
			Msg("Node marked dead due to request failure")
	}

	status.Online = false
	status.ConsecFails = maxConsecutiveFailures
	status.LastError = err.Error()
	status.LastCheck = time.Now()
}

// NodeStatus returns the live status of one node.
func (m *Monitor) NodeStatus(nodeID int64) (models.NodeStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[nodeID]
	if !ok {
		return models.NodeStatus{}, false
	}
	return *status, true
}

// AllStatuses returns status for every tracked node.
func (m *Monitor) AllStatuses() map[int64]models.NodeStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]models.NodeStatus, len(m.statuses))
	for id, status := range m.statuses {
		out[id] = *status
	}
	return out
}

// IsOnline reports whether the node is currently considered reachable.
// Unknown nodes are assumed online until a check proves otherwise.
func (m *Monitor) IsOnline(nodeID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[nodeID]
	if !ok {
		return true
	}
	return status.Online
}

func (m *Monitor) checkLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkAllNodes()
		}
	}
}

// checkAllNodes re-reads the directory and checks every node concurrently.
func (m *Monitor) checkAllNodes() {
	nodes, err := m.store.ListNodes()
	if err != nil {
		log.Error().Err(err).Msg("Fleet monitor failed to list nodes")
		return
	}

	var waitGroup sync.WaitGroup
	for _, node := range nodes {
		waitGroup.Add(1)
		go func(n models.Node) {
			defer waitGroup.Done()
			m.checkNode(n)
		}(node)
	}
	waitGroup.Wait()

	m.pruneRemoved(nodes)
}

func (m *Monitor) checkNode(node models.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), m.checkTimeout)
	defer cancel()

	start := time.Now()
	_, err := m.client.Ping(ctx, node)
	latency := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.statuses[node.ID]
	if status == nil {
		status = &models.NodeStatus{NodeID: node.ID, Online: true}
		m.statuses[node.ID] = status
	}

	status.LastCheck = time.Now()
	status.Latency = latency.Milliseconds()

	if err != nil {
		status.LastError = err.Error()

		// HTTP errors mean the node answered; only connection-level
		// failures count toward taking the node offline.
		if isUnreachable(err) {
			status.ConsecFails++
			if status.ConsecFails >= maxConsecutiveFailures {
				if status.Online {
					log.Warn().
						Int64("node_id", node.ID).
						Str("node", node.Name).
						Int("consecutive_failures", status.ConsecFails).
						Err(err).
						Msg("Node marked offline")
				}
				status.Online = false
			}
		}
		return
	}

	wasOffline := !status.Online
	status.Online = true
	status.ConsecFails = 0
	status.LastError = ""

	if wasOffline {
		log.Info().
			Int64("node_id", node.ID).
			Str("node", node.Name).
			Int64("latency_ms", status.Latency).
			Msg("Node back online")
	}
}

// pruneRemoved drops status entries for nodes no longer in the directory.
func (m *Monitor) pruneRemoved(nodes []models.Node) {
	current := make(map[int64]bool, len(nodes))
	for _, node := range nodes {
		current[node.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.statuses {
		if !current[id] {
			delete(m.statuses, id)
		}
	}
}

func isUnreachable(err error) bool {
	var unreachable models.NodeUnreachableError
	return errors.As(err, &unreachable)
}
