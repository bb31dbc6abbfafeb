package health

import (
	"context"
	"sync"
	"time"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/probe"
)

// Monitor drives the periodic probe sweep: every interval it probes all
// registered streams and feeds the results through the state machine.
type Monitor struct {
	registry *Registry
	store    *Store
	prober   *probe.Prober
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates the stream health monitor.
func NewMonitor(registry *Registry, store *Store, prober *probe.Prober, interval time.Duration) *Monitor {
	return &Monitor{
		registry: registry,
		store:    store,
		prober:   prober,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background probe loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
	log.Info().Dur("interval", m.interval).Msg("Health monitor started")
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	log.Info().Msg("Health monitor stopped")
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}

// Sweep probes every registered stream once.
func (m *Monitor) Sweep(ctx context.Context) {
	streams, err := m.store.ListAll()
	if err != nil {
		log.Error().Err(err).Msg("Health sweep failed to list streams")
		return
	}
	if len(streams) == 0 {
		return
	}

	start := time.Now()
	m.prober.ProbeAll(ctx, streams, func(stream models.Stream, result models.ProbeResult) {
		if _, err := m.registry.RecordProbe(stream.ID, result); err != nil {
			log.Error().
				Int64("stream_id", stream.ID).
				Err(err).
				Msg("Failed to record probe result")
		}
	})

	log.Debug().
		Int("streams", len(streams)).
		Dur("elapsed", time.Since(start)).
		Msg("Health sweep complete")
}
