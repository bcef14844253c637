// Package keyword implements RCS keyword substitution: the
// six expansion modes, per-keyword value computation, and the special
// handling $Log$ requires to grow its own history without RCS ever
// re-inserting an entry twice.
package keyword

import (
	"fmt"
	"strings"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// Mode names the -k<mode> substitution style.
type Mode string

const (
	KV  Mode = "kv"  // $Keyword: value $ (default)
	KVL Mode = "kvl" // kv, plus locker name when the revision is locked
	K   Mode = "k"   // $Keyword$, no value
	V   Mode = "v"   // bare value, no $ delimiters at all
	O   Mode = "o"   // leave the old string exactly as found
	B   Mode = "b"   // like o, and never translated for line endings
)

// ParseMode validates a mode name, defaulting "" to KV: an archive's
// admin "expand" clause defaults to "kv" when absent.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", KV:
		return KV, nil
	case KVL, K, V, O, B:
		return Mode(s), nil
	default:
		return "", errors.Errorf("keyword: unknown substitution mode %q", s)
	}
}

// recognized keyword names.
var known = map[string]bool{
	"Author": true, "Date": true, "Header": true, "Id": true,
	"Locker": true, "Log": true, "Name": true, "RCSfile": true,
	"Revision": true, "Source": true, "State": true,
}

// Values supplies the per-checkout data needed to compute keyword values.
type Values struct {
	Author   string
	Date     string // display string as built by the caller; rcs.Values uses rcsdate.Display's "YYYY.MM.DD.hh.mm.ss" layout
	RCSfile  string // archive's base name, e.g. "foo.c,v"
	Source   string // archive's full pathname
	State    string
	Revision string
	Locker   string // "" if the revision is unlocked
	Name     string // symbolic tag used to select this checkout, "" if none
}

func lockerSuffix(locker string, mode Mode) string {
	if locker == "" || mode != KVL {
		return ""
	}
	return "  " + locker
}

func valueOf(kw string, v Values, mode Mode) (string, bool) {
	switch kw {
	case "Author":
		return v.Author, true
	case "Date":
		return v.Date, true
	case "Header":
		return fmt.Sprintf("%s %s %s %s %s%s", v.Source, v.Revision, v.Date, v.Author, v.State, lockerSuffix(v.Locker, mode)), true
	case "Id":
		return fmt.Sprintf("%s %s %s %s %s%s", v.RCSfile, v.Revision, v.Date, v.Author, v.State, lockerSuffix(v.Locker, mode)), true
	case "Locker":
		return v.Locker, true
	case "Name":
		return v.Name, true
	case "RCSfile":
		return v.RCSfile, true
	case "Revision":
		return v.Revision, true
	case "Source":
		return v.Source, true
	case "State":
		return v.State, true
	case "Log":
		return "", false // handled line-by-line by the caller, see ExpandLog
	default:
		return "", false
	}
}

// marker is one "$Keyword[: old-value ]$" occurrence found on a line.
type marker struct {
	start, end int // byte range in the line, including both '$'
	keyword    string
	oldValue   string
	hadValue   bool
}

// scanLine finds the first recognized keyword marker on line, if any.
func scanLine(line string) (marker, bool) {
	i := 0
	for i < len(line) {
		if line[i] != '$' {
			i++
			continue
		}
		j := i + 1
		for j < len(line) && (isIdentByte(line[j])) {
			j++
		}
		kw := line[i+1 : j]
		if !known[kw] {
			i++
			continue
		}
		switch {
		case j < len(line) && line[j] == '$':
			return marker{start: i, end: j + 1, keyword: kw}, true
		case j < len(line) && line[j] == ':':
			k := j + 1
			end := -1
			for p := k; p < len(line); p++ {
				if line[p] == '$' {
					end = p
					break
				}
			}
			if end < 0 {
				i++
				continue
			}
			val := strings.Trim(line[k:end], " \t")
			return marker{start: i, end: end + 1, keyword: kw, oldValue: val, hadValue: true}, true
		default:
			i++
		}
	}
	return marker{}, false
}

func isIdentByte(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

// render formats a single (non-Log) keyword substitution per mode.
func render(kw, value string, mode Mode) string {
	switch mode {
	case K:
		return "$" + kw + "$"
	case V:
		return value
	default: // KV, KVL
		return "$" + kw + ": " + value + " $"
	}
}

// ExpandLine substitutes any recognized keyword marker on line, other than
// $Log$ (the caller handles that one via ExpandLog since it spans multiple
// output lines). Modes O and B return line unchanged.
func ExpandLine(line string, mode Mode, v Values) string {
	if mode == O || mode == B {
		return line
	}
	m, ok := scanLine(line)
	if !ok {
		return line
	}
	if m.keyword == "Log" {
		return line[:m.end] + ExpandLine(line[m.end:], mode, v)
	}
	value, known := valueOf(m.keyword, v, mode)
	if !known {
		return line[:m.end] + ExpandLine(line[m.end:], mode, v)
	}
	return line[:m.start] + render(m.keyword, value, mode) + ExpandLine(line[m.end:], mode, v)
}

// ExpandText runs ExpandLine over every line of text, preserving the
// original line terminator convention (a trailing "\n" on the input
// implies one on the output).
func ExpandText(text string, mode Mode, v Values) string {
	if text == "" {
		return text
	}
	trailingNL := strings.HasSuffix(text, "\n")
	body := text
	if trailingNL {
		body = body[:len(body)-1]
	}
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = ExpandLine(l, mode, v)
	}
	out := strings.Join(lines, "\n")
	if trailingNL {
		out += "\n"
	}
	return out
}

// ExpandLog finds the line containing the first $Log$ marker (bare, or
// already expanded as "$Log: ... $"), if any,
// and replaces it with the marker line itself (re-rendered, header-only)
// followed by a freshly composed log entry: "<leader>Revision rev  date
// author\n" then the commit's log message, each line prefixed by leader,
// then a blank "<leader>" separator line. It never re-inserts an entry for
// a revision that already heads the block (guarded by the caller supplying
// already-checked-out text, which RCS's own co never re-runs through
// keyword substitution with -kv/-kb's "do not expand" short-circuit —
// ExpandLog is only meant to be called once, during ci, against the
// previous revision's already-expanded-and-then-reverted text).
func ExpandLog(text string, mode Mode, v Values, leader, logMessage string) string {
	if mode == O || mode == B {
		return text
	}
	trailingNL := strings.HasSuffix(text, "\n")
	body := text
	if trailingNL {
		body = body[:len(body)-1]
	}
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		m, ok := scanLine(l)
		if !ok || m.keyword != "Log" {
			continue
		}
		header := l[:m.start] + render("Log", v.RCSfile, mode) + l[m.end:]
		var entry []string
		entry = append(entry, fmt.Sprintf("%sRevision %s  %s  %s", leader, v.Revision, v.Date, v.Author))
		msgLines := strings.Split(strings.TrimRight(logMessage, "\n"), "\n")
		for _, ml := range msgLines {
			if ml == "" {
				entry = append(entry, strings.TrimRight(leader, " "))
			} else {
				entry = append(entry, leader+ml)
			}
		}
		entry = append(entry, strings.TrimRight(leader, " "))
		out := make([]string, 0, len(lines)+len(entry))
		out = append(out, lines[:i]...)
		out = append(out, header)
		out = append(out, entry...)
		out = append(out, lines[i+1:]...)
		joined := strings.Join(out, "\n")
		if trailingNL {
			joined += "\n"
		}
		return joined
	}
	joined := strings.Join(lines, "\n")
	if trailingNL {
		joined += "\n"
	}
	return joined
}

// Strip rewrites every "$Keyword: value $" marker in text back to its bare
// "$Keyword$" form, leaving $Log$ blocks' already-inserted history alone.
// ci runs this over an incoming working file before diffing it against the
// archive's previous revision, so a value substituted at checkout time
// (e.g. "$Revision: 1.4 $") never shows up as a spurious line change.
func Strip(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		from := 0
		for {
			m, ok := scanLine(l[from:])
			if !ok {
				break
			}
			if !m.hadValue || m.keyword == "Log" {
				from += m.end
				continue
			}
			l = l[:from+m.start] + "$" + m.keyword + "$" + l[from+m.end:]
			from += m.start + len(m.keyword) + 2
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}

// DetectMode sniffs content's leading bytes and returns B when it looks
// like a recognized binary format, or KV otherwise. Used to pick a
// default admin expand mode for a brand-new archive whose first deposit
// never set one explicitly.
func DetectMode(content []byte) Mode {
	kind, err := filetype.Match(content)
	if err == nil && kind != filetype.Unknown {
		return B
	}
	return KV
}

// Marker is a recognized keyword occurrence reported by ScanMarkers.
type Marker struct {
	Line     int // 1-based
	Keyword  string
	OldValue string
}

// ScanMarkers is the ident(1)-equivalent supplemented feature: it scans
// text for every "$Keyword: value $" occurrence without modifying
// anything, letting a caller report what keyword values a working file (or
// binary, treated as text) currently carries.
func ScanMarkers(text string) []Marker {
	var out []Marker
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		rest := l
		for {
			m, ok := scanLine(rest)
			if !ok {
				break
			}
			if m.hadValue {
				out = append(out, Marker{Line: i + 1, Keyword: m.keyword, OldValue: m.oldValue})
			}
			rest = rest[m.end:]
		}
	}
	return out
}
