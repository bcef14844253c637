// Package revnum implements revision-number algebra: a
// revision number is a dotted sequence of non-negative integer fields,
// compared per-field numerically rather than as an opaque string, with
// missing fields ranking higher than any present field.
package revnum

import "strings"

// Normalize strips leading zeros from every field (so "01.2" and "1.2"
// compare and print identically): leading zeros in a field are
// equivalent.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Split(s, ".")
	for i, f := range fields {
		fields[i] = stripLeadingZeros(f)
	}
	return strings.Join(fields, ".")
}

func stripLeadingZeros(f string) string {
	i := 0
	for i < len(f)-1 && f[i] == '0' {
		i++
	}
	return f[i:]
}

// CountFields counts dot-separated segments; empty -> 0.
func CountFields(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, ".") + 1
}

// IsBranch reports whether s denotes a revision living on a branch rather
// than on the trunk: trunk revisions always have exactly two fields, so a
// branch revision needs an even field count of four or more.
func IsBranch(s string) bool {
	n := CountFields(s)
	return n >= 4 && n%2 == 0
}

// IsBranchDesignator reports whether s names a branch itself (not a
// concrete delta on it): a branch off revision "1.2" is "1.2.1", an odd
// field count of three or more, one field longer than the revision it
// sprouts from.
func IsBranchDesignator(s string) bool {
	n := CountFields(s)
	return n >= 3 && n%2 == 1
}

// BranchOf returns the branch designator a revision lives on, stripping
// its last field; a trunk revision or a string that is already a branch
// designator is returned unchanged, mirroring classic RCS's branch_of.
func BranchOf(s string) string {
	n := CountFields(s)
	if n <= 2 || n%2 != 0 {
		return s
	}
	i := strings.LastIndex(s, ".")
	if i < 0 {
		return s
	}
	return s[:i]
}

// Partial returns the first k dot-joined fields of s.
func Partial(s string, k int) string {
	fields := strings.Split(s, ".")
	if k > len(fields) {
		k = len(fields)
	}
	return strings.Join(fields[:k], ".")
}

// Increment increments the final field of s; there is no carry (e.g. "9"
// -> "10", "1.999" -> "1.1000").
func Increment(s string) string {
	i := strings.LastIndex(s, ".")
	head, last := "", s
	if i >= 0 {
		head, last = s[:i+1], s[i+1:]
	}
	n := fieldToInt(last)
	return head + itoa(n+1)
}

// Decrement decrements the final field of s; the caller must not pass a
// number whose final field is already "1" (there is no revision "0").
func Decrement(s string) string {
	i := strings.LastIndex(s, ".")
	head, last := "", s
	if i >= 0 {
		head, last = s[:i+1], s[i+1:]
	}
	n := fieldToInt(last)
	return head + itoa(n-1)
}

// fieldToInt parses an unbounded non-negative decimal field. Values are
// kept as int64 here; RCS fields are unbounded in principle, but no
// real-world archive exceeds an int64 field, and callers needing more
// would need arbitrary precision throughout — out of scope (DESIGN.md).
func fieldToInt(f string) int64 {
	var n int64
	for i := 0; i < len(f); i++ {
		n = n*10 + int64(f[i]-'0')
	}
	return n
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// cmpField compares two individual field strings numerically, ignoring
// leading zeros, without needing fixed-width integer parsing.
func cmpField(a, b string) int {
	a = stripLeadingZeros(a)
	b = stripLeadingZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// CmpNum compares two dotted numbers lexicographically by field, field by
// field numerically; a missing field ranks higher than any present field
// mirroring classic RCS's cmp_num.
func CmpNum(a, b string) int {
	af := splitNonEmpty(a)
	bf := splitNonEmpty(b)
	n := len(af)
	if len(bf) < n {
		n = len(bf)
	}
	for i := 0; i < n; i++ {
		if c := cmpField(af[i], bf[i]); c != 0 {
			return c
		}
	}
	if len(af) == len(bf) {
		return 0
	}
	// Missing field ranks higher: the shorter number is "greater".
	if len(af) < len(bf) {
		return 1
	}
	return -1
}

// CmpNumField compares only the k-th (1-based) field of a and b; both must
// have at least k fields.
func CmpNumField(a, b string, k int) int {
	af := splitNonEmpty(a)
	bf := splitNonEmpty(b)
	return cmpField(af[k-1], bf[k-1])
}

// CmpPartial is like CmpNum but considers only the first k fields; a
// number with fewer than k fields is treated as missing those fields
// (ranks higher), matching CmpNum's overall missing-field rule.
func CmpPartial(a, b string, k int) int {
	return CmpNum(Partial(a, k), Partial(b, k))
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}
