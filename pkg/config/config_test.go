package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests config loading and validation.
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

// SetupSuite runs once before all tests.
func (s *ConfigTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)
}

// TearDownSuite runs once after all tests.
func (s *ConfigTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(s.tempDir, "config.yml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestDefaults tests the default configuration.
func (s *ConfigTestSuite) TestDefaults() {
	cfg := Default()
	s.Equal(":8089", cfg.Listen)
	s.Equal(30, cfg.Probe.IntervalSec)
	s.Equal(8, cfg.Probe.Workers)
	s.Equal(3, cfg.Remediation.MaxAttempts)
	s.Equal(90.0, cfg.Retention.CriticalUsagePercent)
	s.NoError(cfg.Validate())
}

// TestLoad tests loading a partial config over defaults.
func (s *ConfigTestSuite) TestLoad() {
	path := s.writeConfig(`
listen: ":9000"
probe:
  interval_sec: 10
  min_fps: 12.5
remediation:
  max_attempts: 5
`)

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(":9000", cfg.Listen)
	s.Equal(10, cfg.Probe.IntervalSec)
	s.Equal(12.5, cfg.Probe.MinFPS)
	s.Equal(5, cfg.Remediation.MaxAttempts)
	// Untouched sections keep defaults.
	s.Equal(8, cfg.Probe.Workers)
	s.Equal("data/streamctl.db", cfg.DBPath)
}

// TestLoadMissingFile tests loading a nonexistent file.
func (s *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(s.tempDir, "missing.yml"))
	s.Error(err)
}

// TestLoadInvalidYAML tests loading malformed YAML.
func (s *ConfigTestSuite) TestLoadInvalidYAML() {
	path := s.writeConfig("listen: [unclosed")
	_, err := Load(path)
	s.Error(err)
}

// TestValidate tests rejection of unusable values.
func (s *ConfigTestSuite) TestValidate() {
	cfg := Default()
	cfg.Remediation.MaxAttempts = 0
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Remediation.Actions = nil
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Retention.CriticalUsagePercent = 150
	s.Error(cfg.Validate())

	cfg = Default()
	cfg.Probe.Workers = 0
	s.Error(cfg.Validate())
}

// TestSuite runs the test suite.
func TestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
