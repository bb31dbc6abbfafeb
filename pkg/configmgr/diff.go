package configmgr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const diffContextLines = 3

// HashBody returns the deterministic content hash of a config body.
// The body is normalized first so that trailing-whitespace and
// trailing-newline variations of the same config hash identically.
func HashBody(body string) string {
	sum := sha256.Sum256([]byte(Normalize(body)))
	return hex.EncodeToString(sum[:])
}

// Normalize strips trailing whitespace per line and trims leading and
// trailing blank lines, leaving exactly one trailing newline.
func Normalize(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	start := 0
	end := len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	if start == end {
		return ""
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}

// UnifiedDiff computes a unified diff between two config bodies. Both
// sides are normalized before comparison, so the diff is empty exactly
// when the content hashes are equal.
func UnifiedDiff(oldBody, newBody, oldLabel, newLabel string) string {
	oldNorm := Normalize(oldBody)
	newNorm := Normalize(newBody)
	if oldNorm == newNorm {
		return ""
	}

	oldLines := splitLines(oldNorm)
	newLines := splitLines(newNorm)
	ops := diffOps(oldLines, newLines)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n", oldLabel)
	fmt.Fprintf(&out, "+++ %s\n", newLabel)

	for _, hunk := range groupHunks(ops) {
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", hunk.oldStart+1, hunk.oldCount, hunk.newStart+1, hunk.newCount)
		for _, op := range hunk.ops {
			switch op.kind {
			case opEqual:
				out.WriteString(" " + op.line + "\n")
			case opDelete:
				out.WriteString("-" + op.line + "\n")
			case opInsert:
				out.WriteString("+" + op.line + "\n")
			}
		}
	}
	return out.String()
}

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type diffOp struct {
	kind opKind
	line string
}

func splitLines(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

// diffOps produces the edit script between two line slices using a
// standard LCS table. Config bodies are small; quadratic is fine here.
func diffOps(oldLines, newLines []string) []diffOp {
	rows := len(oldLines)
	cols := len(newLines)

	lcs := make([][]int, rows+1)
	for i := range lcs {
		lcs[i] = make([]int, cols+1)
	}
	for i := rows - 1; i >= 0; i-- {
		for j := cols - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []diffOp
	i, j := 0, 0
	for i < rows && j < cols {
		switch {
		case oldLines[i] == newLines[j]:
			ops = append(ops, diffOp{opEqual, oldLines[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, diffOp{opDelete, oldLines[i]})
			i++
		default:
			ops = append(ops, diffOp{opInsert, newLines[j]})
			j++
		}
	}
	for ; i < rows; i++ {
		ops = append(ops, diffOp{opDelete, oldLines[i]})
	}
	for ; j < cols; j++ {
		ops = append(ops, diffOp{opInsert, newLines[j]})
	}
	return ops
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	ops                []diffOp
}

// groupHunks splits an edit script into unified-diff hunks with up to
// diffContextLines of context around each change.
func groupHunks(ops []diffOp) []hunk {
	var (
		hunks   []hunk
		current *hunk
		lead    []diffOp // sliding window of equal lines before the next change
		tail    []diffOp // equal run accumulated inside an open hunk
	)
	oldLine, newLine := 0, 0

	for _, op := range ops {
		if op.kind == opEqual {
			if current != nil {
				tail = append(tail, op)
				if len(tail) > 2*diffContextLines {
					// Close the hunk with its trailing context; the rest
					// of the run seeds the next hunk's leading context.
					current.ops = append(current.ops, tail[:diffContextLines]...)
					current.oldCount += diffContextLines
					current.newCount += diffContextLines
					hunks = append(hunks, *current)
					current = nil
					lead = append([]diffOp(nil), tail[len(tail)-diffContextLines:]...)
					tail = nil
				}
			} else {
				lead = append(lead, op)
				if len(lead) > diffContextLines {
					lead = lead[1:]
				}
			}
			oldLine++
			newLine++
			continue
		}

		if current == nil {
			current = &hunk{
				oldStart: oldLine - len(lead),
				newStart: newLine - len(lead),
				oldCount: len(lead),
				newCount: len(lead),
				ops:      append([]diffOp(nil), lead...),
			}
			lead = nil
		} else if len(tail) > 0 {
			current.ops = append(current.ops, tail...)
			current.oldCount += len(tail)
			current.newCount += len(tail)
			tail = nil
		}

		current.ops = append(current.ops, op)
		if op.kind == opDelete {
			current.oldCount++
			oldLine++
		} else {
			current.newCount++
			newLine++
		}
	}

	if current != nil {
		n := len(tail)
		if n > diffContextLines {
			n = diffContextLines
		}
		current.ops = append(current.ops, tail[:n]...)
		current.oldCount += n
		current.newCount += n
		hunks = append(hunks, *current)
	}
	return hunks
}
