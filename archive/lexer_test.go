package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnu-mirror-unofficial/rcs-go/fro"
)

func lex(t *testing.T, s string) []Token {
	t.Helper()
	f := fro.NewFromBytes("mem", []byte(s))
	l := NewLexer(f)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == TokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexIdentNumPunct(t *testing.T) {
	toks := lex(t, "head 1.2; locks;")
	require.Len(t, toks, 5)
	assert.Equal(t, TokIdent, toks[0].Kind)
	assert.Equal(t, "head", toks[0].Text)
	assert.Equal(t, TokNum, toks[1].Kind)
	assert.Equal(t, "1.2", toks[1].Text)
	assert.Equal(t, TokSemicolon, toks[2].Kind)
	assert.Equal(t, TokIdent, toks[3].Kind)
	assert.Equal(t, "locks", toks[3].Text)
	assert.Equal(t, TokSemicolon, toks[4].Kind)
}

func TestLexColon(t *testing.T) {
	toks := lex(t, "a:b")
	require.Len(t, toks, 3)
	assert.Equal(t, TokColon, toks[1].Kind)
}

func TestLexStringSpanUnescapesAtAt(t *testing.T) {
	f := fro.NewFromBytes("mem", []byte("@hello @@world@@!@"))
	l := NewLexer(f)
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, TokString, tok.Kind)
	got, err := fro.MaterializeString(f, tok.StringSpans)
	require.NoError(t, err)
	assert.Equal(t, "hello @world@!", got)
}

func TestLexStringUnterminatedErrors(t *testing.T) {
	f := fro.NewFromBytes("mem", []byte("@unterminated"))
	l := NewLexer(f)
	_, err := l.Next()
	assert.Error(t, err)
}

func TestLexUnexpectedCharacter(t *testing.T) {
	f := fro.NewFromBytes("mem", []byte("$"))
	l := NewLexer(f)
	_, err := l.Next()
	assert.Error(t, err)
	var se *SyntaxError
	assert.ErrorAs(t, err, &se)
}

func TestPeekDoesNotConsume(t *testing.T) {
	f := fro.NewFromBytes("mem", []byte("head"))
	l := NewLexer(f)
	p1, err := l.Peek()
	require.NoError(t, err)
	p2, err := l.Peek()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	n, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, p1, n)
	_, err = l.Peek()
	require.NoError(t, err)
}

func TestLexTracksLineNumbers(t *testing.T) {
	toks := lex(t, "a\nb\nc")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[2].Line)
}
