package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValues() Values {
	return Values{
		Author:   "alice",
		Date:     "2024/01/02 03:04:05",
		RCSfile:  "foo.c,v",
		Source:   "/src/foo.c,v",
		State:    "Exp",
		Revision: "1.2",
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, KV, m)

	m, err = ParseMode("kvl")
	require.NoError(t, err)
	assert.Equal(t, KVL, m)

	_, err = ParseMode("bogus")
	assert.Error(t, err)
}

func TestExpandLineKV(t *testing.T) {
	line := "static char rev[] = \"$Revision$\";"
	got := ExpandLine(line, KV, sampleValues())
	assert.Equal(t, "static char rev[] = \"$Revision: 1.2 $\";", got)
}

func TestExpandLineKVL(t *testing.T) {
	v := sampleValues()
	v.Locker = "bob"
	got := ExpandLine("$Id$", KVL, v)
	assert.Equal(t, "$Id: foo.c,v 1.2 2024/01/02 03:04:05 alice Exp  bob $", got)
}

func TestExpandLineModeK(t *testing.T) {
	got := ExpandLine("$Author: old $", K, sampleValues())
	assert.Equal(t, "$Author$", got)
}

func TestExpandLineModeO(t *testing.T) {
	line := "$Author: whatever $"
	assert.Equal(t, line, ExpandLine(line, O, sampleValues()))
}

func TestExpandLineUnknownKeywordUntouched(t *testing.T) {
	line := "$NotAKeyword$"
	assert.Equal(t, line, ExpandLine(line, KV, sampleValues()))
}

func TestExpandTextPreservesTrailingNewline(t *testing.T) {
	text := "line one\n$Author$\nline three\n"
	got := ExpandText(text, KV, sampleValues())
	assert.Equal(t, "line one\n$Author: alice $\nline three\n", got)
}

func TestExpandLogInsertsEntry(t *testing.T) {
	text := "/* $Log$\n */\n"
	v := sampleValues()
	got := ExpandLog(text, KV, v, " * ", "fixed a bug\nsecond line")
	assert.Contains(t, got, "$Log: foo.c,v $")
	assert.Contains(t, got, "Revision 1.2  2024/01/02 03:04:05  alice")
	assert.Contains(t, got, " * fixed a bug")
	assert.Contains(t, got, " * second line")
}

func TestStripRemovesSubstitutedValues(t *testing.T) {
	in := "$Revision: 1.4 $ and $Author: bob $"
	assert.Equal(t, "$Revision$ and $Author$", Strip(in))
}

func TestStripLeavesLogBlockAlone(t *testing.T) {
	in := "$Log: foo.c,v $"
	assert.Equal(t, in, Strip(in))
}

func TestScanMarkers(t *testing.T) {
	text := "a $Revision: 1.2 $ b\n$Author: alice $\nplain\n"
	markers := ScanMarkers(text)
	require.Len(t, markers, 2)
	assert.Equal(t, "Revision", markers[0].Keyword)
	assert.Equal(t, "1.2", markers[0].OldValue)
	assert.Equal(t, 2, markers[1].Line)
}

func TestDetectModeText(t *testing.T) {
	assert.Equal(t, KV, DetectMode([]byte("plain ascii text\nwith lines\n")))
}

func TestDetectModeBinary(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	assert.Equal(t, B, DetectMode(png))
}
