package archive

import (
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
	"github.com/pkg/errors"
)

// TokenKind classifies one lexeme of the archive grammar.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNum // dotted revision number or bare date digits
	TokColon
	TokSemicolon
	TokString // body not materialized; see Token.StringSpans
)

// Token is one lexed unit. For TokString, Text is empty and StringSpans
// holds the (offset,len) ranges covering the body — the lexer never copies
// a string body, only records where it lives, so a parse pass over a large
// archive doesn't allocate per-deltatext memory.
type Token struct {
	Kind        TokenKind
	Text        string // for TokIdent/TokNum/TokColon/TokSemicolon
	StringSpans []fro.Span
	Line        int
	Offset      int64 // byte offset of the token's first character
}

// SyntaxError is returned for any lexical malformation. It always carries
// the archive name and line number.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return errors.Errorf("%s:%d: %s", e.File, e.Line, e.Msg).Error()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isIdentChar covers the grammar's identifier-character set: RCS allows
// identifiers to contain most printable characters except whitespace and
// the grammar's own punctuation ('$', ',', ':', ';', '@'); '.' is accepted.
func isIdentChar(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f', '$', ',', ';', ':', '@':
		return false
	}
	return b > ' ' && b < 0x7f || b >= 0x80
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Lexer tokenizes an archive's byte stream. It holds no allocated copies of
// string bodies; RawToken/NextToken read directly from the underlying Fro.
type Lexer struct {
	f       *fro.Fro
	name    string
	line    int
	peeked  *Token
	peekErr error
}

// NewLexer returns a Lexer reading from f, whose Name() is used in error
// messages.
func NewLexer(f *fro.Fro) *Lexer {
	return &Lexer{f: f, name: f.Name(), line: 1}
}

func (l *Lexer) errf(format string, args ...interface{}) error {
	return &SyntaxError{File: l.name, Line: l.line, Msg: errors.Errorf(format, args...).Error()}
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int64 { return l.f.Tell() }

func (l *Lexer) skipSpaceAndComments() {
	for {
		b := l.f.TryGetByte()
		if b == -1 {
			return
		}
		if b == '\n' {
			l.line++
			continue
		}
		if isSpace(byte(b)) {
			continue
		}
		l.f.Seek(-1, 1)
		return
	}
}

// Next returns the next token, or io.EOF wrapped as TokEOF (not an error).
func (l *Lexer) Next() (Token, error) {
	if l.peeked != nil {
		t := *l.peeked
		err := l.peekErr
		l.peeked = nil
		l.peekErr = nil
		return t, err
	}
	return l.lex()
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked == nil {
		t, err := l.lex()
		l.peeked = &t
		l.peekErr = err
	}
	return *l.peeked, l.peekErr
}

func (l *Lexer) lex() (Token, error) {
	l.skipSpaceAndComments()
	startLine := l.line
	startOff := l.f.Tell()
	b := l.f.TryGetByte()
	if b == -1 {
		return Token{Kind: TokEOF, Line: startLine, Offset: startOff}, nil
	}
	switch {
	case b == ';':
		return Token{Kind: TokSemicolon, Text: ";", Line: startLine, Offset: startOff}, nil
	case b == ':':
		return Token{Kind: TokColon, Text: ":", Line: startLine, Offset: startOff}, nil
	case b == '@':
		t, err := l.lexString(startLine)
		t.Offset = startOff
		return t, err
	case isDigit(byte(b)):
		t, err := l.lexNum(byte(b), startLine)
		t.Offset = startOff
		return t, err
	case isIdentStart(byte(b)) || isIdentChar(byte(b)):
		t, err := l.lexIdent(byte(b), startLine)
		t.Offset = startOff
		return t, err
	default:
		return Token{}, l.errf("unexpected character %q", rune(b))
	}
}

func (l *Lexer) lexNum(first byte, startLine int) (Token, error) {
	buf := []byte{first}
	for {
		b := l.f.TryGetByte()
		if b == -1 {
			break
		}
		if isDigit(byte(b)) || b == '.' {
			buf = append(buf, byte(b))
			continue
		}
		l.f.Seek(-1, 1)
		break
	}
	return Token{Kind: TokNum, Text: string(buf), Line: startLine}, nil
}

func (l *Lexer) lexIdent(first byte, startLine int) (Token, error) {
	buf := []byte{first}
	for {
		b := l.f.TryGetByte()
		if b == -1 {
			break
		}
		if isIdentChar(byte(b)) || isDigit(byte(b)) {
			buf = append(buf, byte(b))
			continue
		}
		l.f.Seek(-1, 1)
		break
	}
	return Token{Kind: TokIdent, Text: string(buf), Line: startLine}, nil
}

// lexString reads an "@...@" body with "@@" as a literal-"@" escape; the
// opening '@' has already been consumed. It records the body as a single
// Span over the raw bytes rather than materializing it: "@@" escapes stay
// inside the span and are collapsed only when the span is materialized, so
// none of it is copied here.
func (l *Lexer) lexString(startLine int) (Token, error) {
	var spans []fro.Span
	segStart := l.f.Tell()
	for {
		b := l.f.TryGetByte()
		if b == -1 {
			return Token{}, l.errf("unterminated string")
		}
		if b == '\n' {
			l.line++
		}
		if b != '@' {
			continue
		}
		// Saw '@': either terminator or the first half of "@@".
		nb := l.f.TryGetByte()
		if nb == '@' {
			// "@@" literal escape: keep it inside the span (Materialize
			// contracts it later) and keep scanning the same body.
			continue
		}
		// Terminator. segStart..(pos-1) is the final chunk of the body,
		// not including the terminating '@'.
		end := l.f.Tell() - 1
		if nb != -1 {
			l.f.Seek(-1, 1)
		}
		spans = append(spans, fro.Span{Begin: segStart, End: end})
		return Token{Kind: TokString, StringSpans: spans, Line: startLine}, nil
	}
}
