// Package fro ("file, read-only") presents a byte stream with random
// access over an archive file, choosing at open time between a fully
// in-memory buffer and a seeking, buffered reader over a descriptor,
// depending on file size versus a configured memory limit.
//
// The classic RCS implementation additionally offers a memory-mapped
// variant as a pure optimization over the buffered one; this port omits
// mmap (see DESIGN.md) and uses only the in-memory and seeking readers,
// which are observably identical
// from the Span/Materialize contract callers depend on.
package fro

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

// DefaultMemLimit is the classic RCS default of 256 KiB.
// Below this a whole-file read is used; at or above it a streamed,
// seek-backed reader is used so large archives don't have to be resident.
const DefaultMemLimit = 256 * 1024

const eof = -1

// Fro is a read-only, randomly-addressable byte source.
type Fro struct {
	name     string
	buffered []byte // set when fully buffered
	stream   io.ReadSeeker
	closer   io.Closer
	pos      int64
}

// Open opens name, choosing a buffered or streamed backing based on size
// versus memLimit (use DefaultMemLimit if unsure).
func Open(name string, memLimit int64) (*Fro, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "fro: open %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "fro: stat %s", name)
	}
	if info.Size() < memLimit {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, errors.Wrapf(err, "fro: read %s", name)
		}
		return &Fro{name: name, buffered: data}, nil
	}
	return &Fro{name: name, stream: f, closer: f}, nil
}

// NewFromBytes wraps an in-memory buffer (used for working-file contents
// and in tests) as a Fro.
func NewFromBytes(name string, data []byte) *Fro {
	return &Fro{name: name, buffered: data}
}

// Name returns the name the Fro was opened with, used in error messages
// (e.g. by the segv-style "current access filename" convention classic
// RCS uses, reduced here to a plain field since Go has no SIGSEGV
// recovery story for mmap-less I/O).
func (f *Fro) Name() string { return f.name }

// Close releases any underlying descriptor.
func (f *Fro) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

func (f *Fro) size() int64 {
	if f.buffered != nil {
		return int64(len(f.buffered))
	}
	pos := f.pos
	n, _ := f.stream.Seek(0, io.SeekEnd)
	f.stream.Seek(pos, io.SeekStart)
	return n
}

// Tell returns the current read position.
func (f *Fro) Tell() int64 { return f.pos }

// Seek moves the current read position. whence follows io.Seek* semantics.
func (f *Fro) Seek(offset int64, whence int) (int64, error) {
	if f.buffered != nil {
		var base int64
		switch whence {
		case io.SeekStart:
			base = 0
		case io.SeekCurrent:
			base = f.pos
		case io.SeekEnd:
			base = int64(len(f.buffered))
		}
		f.pos = base + offset
		return f.pos, nil
	}
	n, err := f.stream.Seek(offset, whence)
	if err == nil {
		f.pos = n
	}
	return n, err
}

// TryGetByte returns the next byte, advancing the position, or eof (-1) at
// end of stream. It never returns an error — EOF is a sentinel value, not
// a fault, matching the original's try_get_byte.
func (f *Fro) TryGetByte() int {
	if f.buffered != nil {
		if f.pos >= int64(len(f.buffered)) {
			return eof
		}
		b := f.buffered[f.pos]
		f.pos++
		return int(b)
	}
	var buf [1]byte
	n, err := f.stream.Read(buf[:])
	if n == 0 || err != nil {
		return eof
	}
	f.pos++
	return int(buf[0])
}

// MustGetByte is TryGetByte but treats EOF as an error.
func (f *Fro) MustGetByte() (byte, error) {
	b := f.TryGetByte()
	if b == eof {
		return 0, errors.New("fro: unexpected EOF")
	}
	return byte(b), nil
}

// SpewRange bulk-copies the half-open byte range [beg,end) into dest,
// without disturbing the current read position used by TryGetByte.
func (f *Fro) SpewRange(dest io.Writer, beg, end int64) error {
	if end < beg {
		return errors.Errorf("fro: invalid range [%d,%d)", beg, end)
	}
	if f.buffered != nil {
		if end > int64(len(f.buffered)) {
			return errors.New("fro: range past EOF")
		}
		_, err := dest.Write(f.buffered[beg:end])
		return err
	}
	savedPos := f.pos
	if _, err := f.stream.Seek(beg, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.CopyN(dest, f.stream, end-beg); err != nil {
		return errors.Wrap(err, "fro: range past EOF")
	}
	_, err := f.stream.Seek(savedPos, io.SeekStart)
	f.pos = savedPos
	return err
}

// RangeBytes is SpewRange into a freshly allocated []byte.
func (f *Fro) RangeBytes(beg, end int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(end - beg))
	if err := f.SpewRange(&buf, beg, end); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Span is a reference to a byte range inside a Fro: archive text
// containing the "@@" escape survives in a Span as-is; Materialize
// contracts "@@" -> "@".
type Span struct {
	Begin, End int64
}

// Len returns the raw (unescaped) byte length of the span.
func (s Span) Len() int64 { return s.End - s.Begin }

// Materialize concatenates the given spans' raw bytes from f into dest,
// contracting every "@@" run to a single "@" (the RCS string-escape rule).
// Spans are assumed to be in source order and each individually well-formed
// (never splitting an "@@" pair across a span boundary — the lexer
// guarantees this when it records string-body spans).
func Materialize(f *Fro, spans []Span, dest io.Writer) error {
	for _, sp := range spans {
		raw, err := f.RangeBytes(sp.Begin, sp.End)
		if err != nil {
			return err
		}
		if err := writeContracted(dest, raw); err != nil {
			return err
		}
	}
	return nil
}

func writeContracted(dest io.Writer, raw []byte) error {
	i := 0
	for i < len(raw) {
		j := i
		for j < len(raw) && raw[j] != '@' {
			j++
		}
		if j > i {
			if _, err := dest.Write(raw[i:j]); err != nil {
				return err
			}
		}
		if j >= len(raw) {
			break
		}
		// raw[j] == '@'; the lexer only ever records "@@" pairs inside a
		// span body (a lone trailing '@' would be the string terminator,
		// which is never included in the span), so collapse the pair.
		if _, err := dest.Write([]byte{'@'}); err != nil {
			return err
		}
		i = j + 2
	}
	return nil
}

// MaterializeString is Materialize into a string.
func MaterializeString(f *Fro, spans []Span) (string, error) {
	var buf bytes.Buffer
	if err := Materialize(f, spans, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
