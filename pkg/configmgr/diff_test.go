package configmgr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DiffTestSuite tests config normalization, hashing and diffing.
type DiffTestSuite struct {
	suite.Suite
}

// TestNormalize tests whitespace normalization.
func (s *DiffTestSuite) TestNormalize() {
	s.Equal("a: 1\n", Normalize("a: 1"))
	s.Equal("a: 1\n", Normalize("a: 1  \n\n\n"))
	s.Equal("a: 1\n", Normalize("\n\na: 1\n"))
	s.Equal("a: 1\nb: 2\n", Normalize("a: 1\r\nb: 2\r\n"))
	s.Equal("", Normalize("   \n\t\n"))
}

// TestHashBody tests hash determinism over normalization variants.
func (s *DiffTestSuite) TestHashBody() {
	base := HashBody("logLevel: info\npaths:\n  lobby:\n")

	s.Equal(base, HashBody("logLevel: info\npaths:\n  lobby:"))
	s.Equal(base, HashBody("logLevel: info  \npaths:\n  lobby:\n\n\n"))
	s.Equal(base, HashBody("logLevel: info\r\npaths:\r\n  lobby:\r\n"))
	s.NotEqual(base, HashBody("logLevel: debug\npaths:\n  lobby:\n"))
}

// TestUnifiedDiffEmptyOnEqualHash tests that the diff is empty exactly
// when the hashes match.
func (s *DiffTestSuite) TestUnifiedDiffEmptyOnEqualHash() {
	oldBody := "a: 1\nb: 2\n"
	sameBody := "a: 1  \nb: 2"
	changedBody := "a: 1\nb: 3\n"

	s.Equal(HashBody(oldBody), HashBody(sameBody))
	s.Empty(UnifiedDiff(oldBody, sameBody, "old", "new"))

	s.NotEqual(HashBody(oldBody), HashBody(changedBody))
	s.NotEmpty(UnifiedDiff(oldBody, changedBody, "old", "new"))
}

// TestUnifiedDiffContent tests the diff body markers.
func (s *DiffTestSuite) TestUnifiedDiffContent() {
	oldBody := "logLevel: info\napi: yes\n"
	newBody := "logLevel: debug\napi: yes\n"

	diff := UnifiedDiff(oldBody, newBody, "snapshot-1", "proposed")
	s.Contains(diff, "--- snapshot-1")
	s.Contains(diff, "+++ proposed")
	s.Contains(diff, "-logLevel: info")
	s.Contains(diff, "+logLevel: debug")
	s.Contains(diff, " api: yes")
}

// TestUnifiedDiffFromEmpty tests diffing against no previous snapshot.
func (s *DiffTestSuite) TestUnifiedDiffFromEmpty() {
	diff := UnifiedDiff("", "a: 1\nb: 2\n", "/dev/null", "proposed")
	s.Contains(diff, "+a: 1")
	s.Contains(diff, "+b: 2")
	s.NotContains(diff, "\n-")
}

// TestUnifiedDiffHunkSplit tests that distant changes land in separate
// hunks.
func (s *DiffTestSuite) TestUnifiedDiffHunkSplit() {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "key"+string(rune('a'+i%26))+": value")
	}
	oldBody := strings.Join(lines, "\n")

	changed := append([]string(nil), lines...)
	changed[0] = "keya: changed"
	changed[29] = "keyd: changed"
	newBody := strings.Join(changed, "\n")

	diff := UnifiedDiff(oldBody, newBody, "old", "new")
	s.Equal(2, strings.Count(diff, "@@ -"))
}

// TestSuite runs the test suite.
func TestSuite(t *testing.T) {
	suite.Run(t, new(DiffTestSuite))
}
