package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen             = ":8089"
	DefaultDBPath             = "data/streamctl.db"
	DefaultProbeIntervalSec   = 30
	DefaultProbeTimeoutSec    = 5
	DefaultProbeWorkers       = 8
	DefaultMinFPS             = 5.0
	DefaultMinBitrateKbps     = 100.0
	DefaultMaxAttempts        = 3
	DefaultBackoffMinSec      = 2
	DefaultBackoffMaxSec      = 30
	DefaultCriticalUsagePct   = 90.0
	DefaultFleetCheckSec      = 5
	DefaultFleetTimeoutSec    = 5
	DefaultRetryMax           = 2
	DefaultRetryWaitMinMillis = 500
	DefaultRetryWaitMaxMillis = 2000
	DefaultRequestTimeoutSec  = 10
)

// Config holds all control-plane settings.
type Config struct {
	Listen      string            `yaml:"listen"`
	DBPath      string            `yaml:"db_path"`
	Probe       ProbeConfig       `yaml:"probe"`
	Remediation RemediationConfig `yaml:"remediation"`
	Retention   RetentionConfig   `yaml:"retention"`
	Fleet       FleetConfig       `yaml:"fleet"`
	NodeClient  NodeClientConfig  `yaml:"node_client"`
}

// ProbeConfig controls the probe service and its health thresholds.
// The fps/bitrate floors are product-configurable, never hard-coded.
type ProbeConfig struct {
	IntervalSec    int     `yaml:"interval_sec"`
	TimeoutSec     int     `yaml:"timeout_sec"`
	Workers        int     `yaml:"workers"`
	MinFPS         float64 `yaml:"min_fps"`
	MinBitrateKbps float64 `yaml:"min_bitrate_kbps"`
}

// RemediationConfig controls the bounded-retry remediation policy.
type RemediationConfig struct {
	MaxAttempts   int      `yaml:"max_attempts"`
	BackoffMinSec int      `yaml:"backoff_min_sec"`
	BackoffMaxSec int      `yaml:"backoff_max_sec"`
	Actions       []string `yaml:"actions"`
}

// RetentionConfig controls recording retention and eviction.
type RetentionConfig struct {
	CriticalUsagePercent float64  `yaml:"critical_usage_percent"`
	StorageRoots         []string `yaml:"storage_roots"`
	SweepIntervalSec     int      `yaml:"sweep_interval_sec"` // 0 disables the scheduler
}

// FleetConfig controls periodic node health checking.
type FleetConfig struct {
	CheckIntervalSec int `yaml:"check_interval_sec"`
	CheckTimeoutSec  int `yaml:"check_timeout_sec"`
}

// NodeClientConfig controls the HTTP client used against node control APIs.
type NodeClientConfig struct {
	RetryMax           int `yaml:"retry_max"`
	RetryWaitMinMillis int `yaml:"retry_wait_min_ms"`
	RetryWaitMaxMillis int `yaml:"retry_wait_max_ms"`
	RequestTimeoutSec  int `yaml:"request_timeout_sec"`
}

// Default returns a config populated with default values.
func Default() Config {
	return Config{
		Listen: DefaultListen,
		DBPath: DefaultDBPath,
		Probe: ProbeConfig{
			IntervalSec:    DefaultProbeIntervalSec,
			TimeoutSec:     DefaultProbeTimeoutSec,
			Workers:        DefaultProbeWorkers,
			MinFPS:         DefaultMinFPS,
			MinBitrateKbps: DefaultMinBitrateKbps,
		},
		Remediation: RemediationConfig{
			MaxAttempts:   DefaultMaxAttempts,
			BackoffMinSec: DefaultBackoffMinSec,
			BackoffMaxSec: DefaultBackoffMaxSec,
			Actions:       []string{"restart_source", "force_reconnect", "refresh_source"},
		},
		Retention: RetentionConfig{
			CriticalUsagePercent: DefaultCriticalUsagePct,
			StorageRoots:         []string{"data/recordings"},
		},
		Fleet: FleetConfig{
			CheckIntervalSec: DefaultFleetCheckSec,
			CheckTimeoutSec:  DefaultFleetTimeoutSec,
		},
		NodeClient: NodeClientConfig{
			RetryMax:           DefaultRetryMax,
			RetryWaitMinMillis: DefaultRetryWaitMinMillis,
			RetryWaitMaxMillis: DefaultRetryWaitMaxMillis,
			RequestTimeoutSec:  DefaultRequestTimeoutSec,
		},
	}
}

// Load reads and parses a YAML config file, filling unset fields with
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for values that cannot work.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Remediation.MaxAttempts < 1 {
		return fmt.Errorf("remediation.max_attempts must be at least 1")
	}
	if len(c.Remediation.Actions) == 0 {
		return fmt.Errorf("remediation.actions must not be empty")
	}
	if c.Retention.CriticalUsagePercent <= 0 || c.Retention.CriticalUsagePercent > 100 {
		return fmt.Errorf("retention.critical_usage_percent must be in (0, 100]")
	}
	if c.Probe.Workers < 1 {
		return fmt.Errorf("probe.workers must be at least 1")
	}
	return nil
}
