package main

import (
	"context"
	_ "embed"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamctl/pkg/blacklist"
	"streamctl/pkg/config"
	"streamctl/pkg/configmgr"
	"streamctl/pkg/db"
	"streamctl/pkg/fleet"
	"streamctl/pkg/health"
	"streamctl/pkg/log"
	"streamctl/pkg/nodeclient"
	"streamctl/pkg/probe"
	"streamctl/pkg/remediation"
	"streamctl/pkg/retention"
	"streamctl/pkg/server"
	"streamctl/pkg/sessions"
)

const dataDirPerm = 0750

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	configPath := flag.String("config", "", "Config file path (YAML)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetDebugMode()
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load config")
		}
		cfg = loaded
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), dataDirPerm); err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to create data directory")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open database")
	}
	defer func() { _ = database.Close() }()

	fleetStore, err := fleet.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize fleet store")
	}
	streamStore, err := health.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize stream store")
	}
	snapshotStore, err := configmgr.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config snapshot store")
	}
	recordingStore, err := retention.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize recording store")
	}
	blacklistMgr, err := blacklist.NewManager(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blacklist")
	}

	client := nodeclient.NewHTTPClient(
		cfg.NodeClient.RetryMax,
		time.Duration(cfg.NodeClient.RetryWaitMinMillis)*time.Millisecond,
		time.Duration(cfg.NodeClient.RetryWaitMaxMillis)*time.Millisecond,
		time.Duration(cfg.NodeClient.RequestTimeoutSec)*time.Second,
	)

	monitor := fleet.NewMonitor(fleetStore, client,
		time.Duration(cfg.Fleet.CheckIntervalSec)*time.Second,
		time.Duration(cfg.Fleet.CheckTimeoutSec)*time.Second,
	)

	prober := probe.New(fleetStore, client,
		probe.Thresholds{
			MinFPS:         cfg.Probe.MinFPS,
			MinBitrateKbps: cfg.Probe.MinBitrateKbps,
		},
		time.Duration(cfg.Probe.TimeoutSec)*time.Second,
		cfg.Probe.Workers,
	)

	registry := health.NewRegistry(streamStore)

	actions := make([]nodeclient.Action, 0, len(cfg.Remediation.Actions))
	for _, action := range cfg.Remediation.Actions {
		actions = append(actions, nodeclient.Action(action))
	}
	engine := remediation.NewEngine(streamStore, fleetStore, client, prober, registry,
		remediation.Policy{
			MaxAttempts: cfg.Remediation.MaxAttempts,
			BackoffMin:  time.Duration(cfg.Remediation.BackoffMinSec) * time.Second,
			BackoffMax:  time.Duration(cfg.Remediation.BackoffMaxSec) * time.Second,
			Actions:     actions,
		},
	)

	// Bad health transitions fire remediation in the background; the
	// sweep that detected them is never blocked.
	registry.OnBadTransition(func(streamID int64) {
		go func() {
			if _, err := engine.Remediate(context.Background(), streamID); err != nil {
				log.Warn().Int64("stream_id", streamID).Err(err).Msg("Auto-remediation not started")
			}
		}()
	})

	healthMonitor := health.NewMonitor(registry, streamStore, prober,
		time.Duration(cfg.Probe.IntervalSec)*time.Second)

	configMgr := configmgr.NewManager(snapshotStore, fleetStore, client, streamStore)

	retentionEngine := retention.NewEngine(recordingStore,
		cfg.Retention.StorageRoots, cfg.Retention.CriticalUsagePercent)

	sessionRegistry := sessions.NewRegistry(fleetStore, client)

	monitor.Start()
	defer monitor.Stop()
	healthMonitor.Start()
	defer healthMonitor.Stop()
	retentionEngine.StartScheduler(time.Duration(cfg.Retention.SweepIntervalSec) * time.Second)
	defer retentionEngine.Stop()

	api := server.New(strings.TrimSpace(Version), server.Components{
		Fleet:       fleetStore,
		Monitor:     monitor,
		Streams:     streamStore,
		Registry:    registry,
		Prober:      prober,
		Remediation: engine,
		Configs:     configMgr,
		Retention:   retentionEngine,
		Recordings:  recordingStore,
		Sessions:    sessionRegistry,
		Blacklist:   blacklistMgr,
	})

	if err := api.Start(cfg.Listen); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
