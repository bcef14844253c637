package diffdriver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTemplateEmptyDisablesExternal(t *testing.T) {
	words, err := splitTemplate("  ")
	require.NoError(t, err)
	assert.Nil(t, words)
}

func TestSplitTemplateSplitsShellWords(t *testing.T) {
	words, err := splitTemplate("diff --rcs -n")
	require.NoError(t, err)
	assert.Equal(t, []string{"diff", "--rcs", "-n"}, words)
}

func TestSplitTemplateRejectsUnbalancedQuotes(t *testing.T) {
	_, err := splitTemplate(`diff "unterminated`)
	assert.Error(t, err)
}

func TestAvailableFalseForEmptyWords(t *testing.T) {
	assert.False(t, available(nil))
}

func TestAvailableFalseForUnknownCommand(t *testing.T) {
	assert.False(t, available([]string{"definitely-not-a-real-binary-xyz"}))
}

func TestDiffFallsBackToBuiltinDifferWhenNoExternalConfigured(t *testing.T) {
	out, usedExternal, err := Diff(Config{}, "left.txt", "right.txt", "a\nb\nc\n", "a\nx\nc\n")
	require.NoError(t, err)
	assert.False(t, usedExternal)
	assert.Contains(t, out, "d2")
	assert.Contains(t, out, "a2")
}

func TestDiffFallsBackWhenConfiguredCommandMissing(t *testing.T) {
	out, usedExternal, err := Diff(Config{DiffCmd: "definitely-not-a-real-binary-xyz --rcs"}, "left.txt", "right.txt", "same\n", "same\n")
	require.NoError(t, err)
	assert.False(t, usedExternal)
	assert.Equal(t, "", strings.TrimSpace(out))
}

func TestUnifiedTextProducesHunkHeaders(t *testing.T) {
	out, err := UnifiedText("a\nb\nc\n", "a\nx\nc\n", "left", "right")
	require.NoError(t, err)
	assert.Contains(t, out, "--- left")
	assert.Contains(t, out, "+++ right")
}

func TestMerge3FailsWithoutConfiguredDiff3(t *testing.T) {
	_, _, err := Merge3(Config{}, "mine", "ancestor", "theirs")
	assert.Error(t, err)
}

func TestMerge3FailsWhenConfiguredDiff3Missing(t *testing.T) {
	_, _, err := Merge3(Config{Diff3Cmd: "definitely-not-a-real-binary-xyz"}, "mine", "ancestor", "theirs")
	assert.Error(t, err)
}
