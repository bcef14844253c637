package fro

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryGetByteAndSeek(t *testing.T) {
	f := NewFromBytes("mem", []byte("abc"))
	assert.Equal(t, int('a'), f.TryGetByte())
	assert.Equal(t, int('b'), f.TryGetByte())
	pos, err := f.Seek(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
	assert.Equal(t, int('a'), f.TryGetByte())
}

func TestTryGetByteEOF(t *testing.T) {
	f := NewFromBytes("mem", []byte("a"))
	assert.Equal(t, int('a'), f.TryGetByte())
	assert.Equal(t, eof, f.TryGetByte())
}

func TestMustGetByteErrorsAtEOF(t *testing.T) {
	f := NewFromBytes("mem", nil)
	_, err := f.MustGetByte()
	assert.Error(t, err)
}

func TestSpewRangeLeavesPositionUnchanged(t *testing.T) {
	f := NewFromBytes("mem", []byte("hello world"))
	f.Seek(3, 0)
	var buf bytes.Buffer
	err := f.SpewRange(&buf, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
	assert.Equal(t, int64(3), f.Tell())
}

func TestSpewRangeInvalidRange(t *testing.T) {
	f := NewFromBytes("mem", []byte("hello"))
	var buf bytes.Buffer
	err := f.SpewRange(&buf, 4, 1)
	assert.Error(t, err)
}

func TestRangeBytes(t *testing.T) {
	f := NewFromBytes("mem", []byte("0123456789"))
	got, err := f.RangeBytes(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), got)
}

func TestMaterializeContractsEscapedAt(t *testing.T) {
	f := NewFromBytes("mem", []byte("foo@@bar@@baz"))
	spans := []Span{{Begin: 0, End: int64(len("foo@@bar@@baz"))}}
	got, err := MaterializeString(f, spans)
	require.NoError(t, err)
	assert.Equal(t, "foo@bar@baz", got)
}

func TestMaterializeMultipleSpans(t *testing.T) {
	f := NewFromBytes("mem", []byte("abcdefghij"))
	spans := []Span{{Begin: 0, End: 3}, {Begin: 6, End: 10}}
	got, err := MaterializeString(f, spans)
	require.NoError(t, err)
	assert.Equal(t, "abcghij", got)
}

func TestSpanLen(t *testing.T) {
	s := Span{Begin: 5, End: 12}
	assert.Equal(t, int64(7), s.Len())
}
