// Package rcsdate implements RCS date handling: parsing
// the canonical archive date, comparing dates, and formatting for display
// in a chosen zone.
package rcsdate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// fieldCount is the number of fields in the archive's on-disk date format:
// "YYYY.MM.DD.hh.mm.ss". Pre-v5 archives omit the leading "19" from the
// year; Parse detects and normalizes this.
const fieldCount = 6

// Parse reads a canonical archive date string. It returns wasTwoDigitYear
// true when the year field was given as two digits (pre-v5 convention),
// in which case the returned time already has "19" applied, matching the
// normalize-on-read rule classic RCS follows.
func Parse(s string) (time.Time, bool, error) {
	parts := strings.Split(s, ".")
	if len(parts) != fieldCount {
		return time.Time{}, false, errors.Errorf("rcsdate: expected %d fields, got %d in %q", fieldCount, len(parts), s)
	}
	nums := make([]int, fieldCount)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false, errors.Wrapf(err, "rcsdate: bad field %q in %q", p, s)
		}
		nums[i] = n
	}
	year := nums[0]
	wasTwoDigit := len(parts[0]) == 2
	if wasTwoDigit {
		year += 1900
	}
	t := time.Date(year, time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC)
	return t, wasTwoDigit, nil
}

// Format renders t in the canonical archive layout. If v5OrLater is false
// the year is truncated to two digits (matching what pre-v5 `ci` wrote);
// v5-and-later archives always write the full four-digit year.
func Format(t time.Time, v5OrLater bool) string {
	year := t.Year()
	yearStr := fmt.Sprintf("%04d", year)
	if !v5OrLater && year >= 1900 && year < 2000 {
		yearStr = fmt.Sprintf("%02d", year-1900)
	}
	return fmt.Sprintf("%s.%02d.%02d.%02d.%02d.%02d",
		yearStr, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Compare compares two canonical archive date strings chronologically,
// normalizing two-digit legacy years first, mirroring classic RCS's cmp_date.
func Compare(a, b string) (int, error) {
	ta, _, err := Parse(a)
	if err != nil {
		return 0, err
	}
	tb, _, err := Parse(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ta.Before(tb):
		return -1, nil
	case ta.After(tb):
		return 1, nil
	default:
		return 0, nil
	}
}

// Zone names the display timezone: "local", "UTC"/"Z", or an offset like
// "+01:00"/"-05:30".
type Zone struct {
	Name string
	Loc  *time.Location
}

// ParseZone parses the standard forms: "+HH:MM",
// "-HH:MM", "Z", or the sentinel "local".
func ParseZone(s string) (Zone, error) {
	switch {
	case s == "" || strings.EqualFold(s, "local"):
		return Zone{Name: "local", Loc: time.Local}, nil
	case s == "Z" || strings.EqualFold(s, "UTC"):
		return Zone{Name: "UTC", Loc: time.UTC}, nil
	case len(s) == 6 && (s[0] == '+' || s[0] == '-'):
		h, err1 := strconv.Atoi(s[1:3])
		m, err2 := strconv.Atoi(s[4:6])
		if err1 != nil || err2 != nil || s[3] != ':' {
			return Zone{}, errors.Errorf("rcsdate: bad zone %q", s)
		}
		secs := h*3600 + m*60
		if s[0] == '-' {
			secs = -secs
		}
		return Zone{Name: s, Loc: time.FixedZone(s, secs)}, nil
	default:
		return Zone{}, errors.Errorf("rcsdate: unrecognized zone %q", s)
	}
}

// Display formats t for human/keyword output in zone z, using the
// canonical layout (so $Date$ expansions remain directly re-parseable).
// A zero Zone displays in local time, as ParseZone("") does.
func Display(t time.Time, z Zone) string {
	loc := z.Loc
	if loc == nil {
		loc = time.Local
	}
	return Format(t.In(loc), true)
}

// str2timeLayouts covers the free-form inputs str2time in the original
// accepted: a handful of common orders, kept deliberately small rather
// than general natural-language parsing.
var str2timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
}

// Str2Time is a permissive free-form date parser. It
// returns (t, true) on success, or (zero, false) — the original's -1
// sentinel — on failure.
func Str2Time(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range str2timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
