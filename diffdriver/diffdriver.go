// Package diffdriver implements the diff/merge driver:
// shelling out to external diff/diff3 binaries when available, with a
// built-in fallback differ for environments where they are not installed.
package diffdriver

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/gnu-mirror-unofficial/rcs-go/delta"
)

// Config names the external commands to try, as shell-style templates
// drawn from the environment contract: e.g. "diff -an" or "diff --rcs".
// Args are appended after the template's own words. An empty template
// disables the external path entirely, forcing the fallback differ.
type Config struct {
	DiffCmd  string
	Diff3Cmd string
}

func splitTemplate(template string) ([]string, error) {
	if strings.TrimSpace(template) == "" {
		return nil, nil
	}
	words, err := shlex.Split(template)
	if err != nil {
		return nil, errors.Wrapf(err, "diffdriver: bad command template %q", template)
	}
	return words, nil
}

// available reports whether the first word of words resolves on PATH.
func available(words []string) bool {
	if len(words) == 0 {
		return false
	}
	_, err := exec.LookPath(words[0])
	return err == nil
}

// Diff runs the configured external diff in RCS edit-script mode
// ("diff --rcs" / "diff -n"-equivalent) between two files, returning its
// raw stdout. When no external diff is configured or found on PATH, it
// falls back to the built-in differ over the already-read file contents.
func Diff(cfg Config, leftPath, rightPath, leftText, rightText string) (string, bool, error) {
	words, err := splitTemplate(cfg.DiffCmd)
	if err != nil {
		return "", false, err
	}
	if available(words) {
		args := append(append([]string{}, words[1:]...), leftPath, rightPath)
		cmd := exec.Command(words[0], args...)
		var out, errBuf bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &errBuf
		err := cmd.Run()
		// diff(1) exits 1 to mean "files differ", not failure.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return out.String(), true, nil
		}
		if err != nil {
			return "", false, errors.Wrapf(err, "diffdriver: external diff failed: %s", errBuf.String())
		}
		return out.String(), true, nil
	}
	ops := delta.DiffToScript(leftText, rightText)
	return delta.FormatScript(ops), false, nil
}

// UnifiedText renders a human-readable unified diff between a and b for
// display (the `rcsdiff` command's non -n output), using go-difflib's
// SequenceMatcher-backed hunk generator regardless of whether an external
// diff binary exists — this is purely a reporting path, never consumed by
// the delta engine.
func UnifiedText(a, b, fromName, toName string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// Merge3 runs the configured external diff3 in merge mode (three files:
// mine, ancestor, theirs) and returns its stdout along with whether
// conflicts were detected (diff3 exits 1 on overlapping changes). It has
// no built-in fallback: a faithful conflict-marker algorithm needs diff3's
// own disagreement detection, not just a pairwise LCS, so three-way merge
// without an external diff3 binary is unsupported.
func Merge3(cfg Config, minePath, ancestorPath, theirsPath string) (string, bool, error) {
	words, err := splitTemplate(cfg.Diff3Cmd)
	if err != nil {
		return "", false, err
	}
	if !available(words) {
		return "", false, errors.New("diffdriver: no diff3 binary configured or found on PATH")
	}
	args := append(append([]string{}, words[1:]...), "-m", minePath, ancestorPath, theirsPath)
	cmd := exec.Command(words[0], args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err = cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return out.String(), true, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "diffdriver: external diff3 failed: %s", errBuf.String())
	}
	return out.String(), false, nil
}
