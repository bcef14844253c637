// Package delta implements the delta engine: selecting the
// chain of deltas that reconstructs a revision, applying RCS "n"-format
// edit scripts, and splicing a new delta in on deposit.
package delta

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Op is one edit-script command: Add inserts Lines after line Pos of the
// buffer being edited (RCS's "a L N" means "insert before line L+1", i.e.
// after line L); Delete removes Count lines starting at line Pos.
type Op struct {
	Add    bool
	Pos    int // 1-based line number the op is anchored to
	Count  int
	Lines  []string // text to insert, only set when Add
}

// ParseScript parses an RCS "n"-format edit script:
//
//	script := { "a" line1 count "\n" {text-line} | "d" line1 count "\n" }
func ParseScript(text string) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		header := sc.Text()
		if header == "" {
			continue
		}
		fields := strings.Fields(header)
		if len(fields) != 3 {
			return nil, errors.Errorf("delta: malformed edit command %q", header)
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Errorf("delta: bad line number in %q", header)
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Errorf("delta: bad count in %q", header)
		}
		switch fields[0] {
		case "a":
			lines := make([]string, 0, count)
			for i := 0; i < count; i++ {
				if !sc.Scan() {
					return nil, errors.Errorf("delta: edit script truncated inside 'a' block")
				}
				lines = append(lines, sc.Text())
			}
			ops = append(ops, Op{Add: true, Pos: pos, Count: count, Lines: lines})
		case "d":
			ops = append(ops, Op{Add: false, Pos: pos, Count: count})
		default:
			return nil, errors.Errorf("delta: unknown edit command %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// FormatScript renders ops back into RCS "n"-format text.
func FormatScript(ops []Op) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Add {
			fmt.Fprintf(&b, "a%d %d\n", op.Pos, op.Count)
			for _, l := range op.Lines {
				b.WriteString(l)
				b.WriteByte('\n')
			}
		} else {
			fmt.Fprintf(&b, "d%d %d\n", op.Pos, op.Count)
		}
	}
	return b.String()
}

// splitLines splits text into lines, keeping track of whether the input
// ended with a trailing newline so Apply can reproduce it exactly.
func splitLines(text string) (lines []string, trailingNewline bool) {
	if text == "" {
		return nil, false
	}
	trailingNewline = strings.HasSuffix(text, "\n")
	body := text
	if trailingNewline {
		body = body[:len(body)-1]
	}
	return strings.Split(body, "\n"), trailingNewline
}

func joinLines(lines []string, trailingNewline bool) string {
	if len(lines) == 0 {
		if trailingNewline {
			return ""
		}
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailingNewline {
		s += "\n"
	}
	return s
}

// Apply applies ops, in order, to base text and returns the result.
// Commands must appear in non-decreasing line-number order (a delete and
// an add may share a line number) and must not overlap, and every line
// number referenced must be within the buffer's current bounds at the
// time it is applied; violations are reported as errors ("edit script
// refers to line past end of file").
func Apply(base string, ops []Op) (string, error) {
	lines, trailingNewline := splitLines(base)
	// RCS applies commands against line numbers in the *original* buffer,
	// so we track a running shift to translate each op's Pos into the
	// current (already-edited) buffer's coordinates, rather than
	// reapplying from scratch — this keeps application a single linear
	// pass for efficiency.
	shift := 0
	lastOrigPos := 0
	for _, op := range ops {
		if op.Pos < lastOrigPos {
			return "", errors.Errorf("delta: edit script line numbers out of order at %d", op.Pos)
		}
		lastOrigPos = op.Pos
		cur := op.Pos + shift
		if op.Add {
			if cur > len(lines) {
				return "", errors.Errorf("delta: edit script refers to line past end of file")
			}
			out := make([]string, 0, len(lines)+len(op.Lines))
			out = append(out, lines[:cur]...)
			out = append(out, op.Lines...)
			out = append(out, lines[cur:]...)
			lines = out
			shift += len(op.Lines)
		} else {
			start := cur - 1
			if start < 0 || start+op.Count > len(lines) {
				return "", errors.Errorf("delta: edit script refers to line past end of file")
			}
			out := make([]string, 0, len(lines)-op.Count)
			out = append(out, lines[:start]...)
			out = append(out, lines[start+op.Count:]...)
			lines = out
			shift -= op.Count
		}
	}
	return joinLines(lines, trailingNewline), nil
}

// diffOpsRCS computes a minimal line-level diff between aLines and bLines
// using the classic dynamic-programming LCS, as RCS "n"-format ops
// numbered against aLines. Through DiffToScript it serves as the built-in
// fallback differ (diffdriver) and produces the reverse/forward diffs the
// delta engine stores on deposit and recomposes on outdate.
func diffOpsRCS(aLines, bLines []string) []Op {
	// Longest common subsequence via dynamic programming; fine for the
	// working-file sizes this tool targets (source files, not data
	// dumps) and keeps this package's only dependency on diff semantics
	// self-contained for the cuttail-composition path, which must run
	// without shelling out.
	n, m := len(aLines), len(bLines)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if aLines[i] == bLines[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	// Backtrack through the DP table to recover the edit sequence, then
	// coalesce consecutive delete/insert runs into single ops numbered
	// against a's original line numbers.
	type tag int
	const (
		tagEqual tag = iota
		tagDel
		tagIns
	)
	type step struct {
		tag tag
		aI  int // for tagDel/tagEqual: index into aLines
		bJ  int // for tagIns/tagEqual: index into bLines
	}
	var steps []step
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case aLines[i] == bLines[j]:
			steps = append(steps, step{tagEqual, i, j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			steps = append(steps, step{tagDel, i, -1})
			i++
		default:
			steps = append(steps, step{tagIns, -1, j})
			j++
		}
	}
	for ; i < n; i++ {
		steps = append(steps, step{tagDel, i, -1})
	}
	for ; j < m; j++ {
		steps = append(steps, step{tagIns, -1, j})
	}

	var ops []Op
	k := 0
	for k < len(steps) {
		switch steps[k].tag {
		case tagEqual:
			k++
		case tagDel:
			start := steps[k].aI
			count := 0
			for k < len(steps) && steps[k].tag == tagDel {
				count++
				k++
			}
			ops = append(ops, Op{Add: false, Pos: start + 1, Count: count})
		case tagIns:
			// Anchor the insertion after the a-line immediately preceding
			// this run; steps[k-1], if present, is either Equal or Del and
			// its aI gives that anchor (Del already advanced i past it, so
			// use the run's own position via the previous Equal/Del step).
			anchor := 0
			if k > 0 {
				// steps[k-1] is always Equal or Del here: consecutive Ins
				// steps are consumed together by this same loop iteration,
				// so the run never starts mid-run.
				anchor = steps[k-1].aI + 1
			}
			var lines []string
			for k < len(steps) && steps[k].tag == tagIns {
				lines = append(lines, bLines[steps[k].bJ])
				k++
			}
			ops = append(ops, Op{Add: true, Pos: anchor, Count: len(lines), Lines: lines})
		}
	}
	return ops
}


// DiffToScript computes the edit script that turns `from` into `to`,
// expressed as RCS "n"-format lines numbered against `from`. Deposit and
// Outdate use it to build stored edit scripts, and diffdriver.Diff uses it
// when no external diff binary is available.
func DiffToScript(from, to string) []Op {
	aLines, _ := splitLines(from)
	bLines, _ := splitLines(to)
	return diffOpsRCS(aLines, bLines)
}
