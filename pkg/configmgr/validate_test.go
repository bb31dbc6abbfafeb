package configmgr

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// pathSet is a canned PathChecker backed by a set of registered paths.
type pathSet map[string]bool

func (p pathSet) PathExists(path string) (bool, error) {
	return p[path], nil
}

// ValidateTestSuite tests config body validation.
type ValidateTestSuite struct {
	suite.Suite
	paths pathSet
}

// SetupSuite runs once before all tests.
func (s *ValidateTestSuite) SetupSuite() {
	s.paths = pathSet{"lobby": true, "garage": true}
}

// TestValidateGoodConfig tests a clean config.
func (s *ValidateTestSuite) TestValidateGoodConfig() {
	result := Validate(`
logLevel: info
hls: yes
paths:
  lobby:
    source: rtsp://camera.internal/lobby
`, s.paths)

	s.True(result.Valid)
	s.Empty(result.Errors)
	s.Empty(result.Warnings)
}

// TestValidateEmptyBody tests the empty-body error.
func (s *ValidateTestSuite) TestValidateEmptyBody() {
	result := Validate("   \n", s.paths)
	s.False(result.Valid)
	s.NotEmpty(result.Errors)
}

// TestValidateBadYAML tests syntax errors.
func (s *ValidateTestSuite) TestValidateBadYAML() {
	result := Validate("paths: [unclosed", s.paths)
	s.False(result.Valid)
	s.NotEmpty(result.Errors)
}

// TestValidateUnknownKeyWarns tests that unknown keys warn, not fail.
func (s *ValidateTestSuite) TestValidateUnknownKeyWarns() {
	result := Validate("logLevel: info\nfutureSetting: yes\n", s.paths)
	s.True(result.Valid)
	s.Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "futureSetting")
}

// TestValidateUnregisteredPathWarns tests the path cross-reference.
func (s *ValidateTestSuite) TestValidateUnregisteredPathWarns() {
	result := Validate(`
paths:
  lobby:
  basement:
`, s.paths)
	s.True(result.Valid)
	s.Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "basement")
}

// TestValidateWildcardPathsSkipped tests that wildcard and regexp path
// entries skip the registry check.
func (s *ValidateTestSuite) TestValidateWildcardPathsSkipped() {
	result := Validate(`
paths:
  all:
  "~^cam.*$":
`, s.paths)
	s.True(result.Valid)
	s.Empty(result.Warnings)
}

// TestValidatePathStructureErrors tests structural path errors.
func (s *ValidateTestSuite) TestValidatePathStructureErrors() {
	result := Validate(`
paths:
  "bad name":
`, s.paths)
	s.False(result.Valid)

	result = Validate(`
paths:
  lobby:
    source: [not, a, string]
`, s.paths)
	s.False(result.Valid)
}

// TestValidateRecordingCoherence tests the record/recordPath rule.
func (s *ValidateTestSuite) TestValidateRecordingCoherence() {
	result := Validate("record: true\n", s.paths)
	s.False(result.Valid)

	result = Validate("record: true\nrecordPath: /recordings/%path/%Y-%m-%d_%H-%M-%S\n", s.paths)
	s.True(result.Valid)
}

// TestValidateSuite runs the test suite.
func TestValidateSuite(t *testing.T) {
	suite.Run(t, new(ValidateTestSuite))
}
