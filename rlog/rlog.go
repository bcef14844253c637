// Package rlog renders the per-revision history report in the classic
// "rlog" style: one header block describing the archive,
// followed by one entry per selected revision, each carrying its date,
// author, state, and log message.
package rlog

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
)

// Filter narrows which revisions WriteEntries visits, mirroring classic
// rlog's selection flags.
type Filter struct {
	Revisions  []string // exact revision numbers or branches; empty = all
	DateFrom   string   // canonical date lower bound, inclusive; "" = no bound
	DateTo     string   // canonical date upper bound, inclusive; "" = no bound
	Author     string   // "" = any
	State      string   // "" = any
	LockedOnly bool
}

func (f Filter) matches(r *archive.Repository, d *archive.Delta) bool {
	if len(f.Revisions) > 0 {
		ok := false
		for _, want := range f.Revisions {
			want = revnum.Normalize(want)
			if want == d.Num || (revnum.IsBranchDesignator(want) && revnum.BranchOf(d.Num) == want) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	dateStr := rcsdate.Format(d.Date, true)
	if f.DateFrom != "" {
		if cmp, err := rcsdate.Compare(dateStr, f.DateFrom); err != nil || cmp < 0 {
			return false
		}
	}
	if f.DateTo != "" {
		if cmp, err := rcsdate.Compare(dateStr, f.DateTo); err != nil || cmp > 0 {
			return false
		}
	}
	if f.Author != "" && f.Author != d.Author {
		return false
	}
	if f.State != "" && f.State != d.State {
		return false
	}
	if f.LockedOnly && d.LockedBy == "" {
		return false
	}
	return true
}

// Report writes an rlog-style history to an io.Writer.
type Report struct {
	w io.Writer
}

// New wraps w as a Report destination.
func New(w io.Writer) *Report { return &Report{w: w} }

// SetWriter redirects subsequent output, letting a caller swap
// destinations mid-run (tests substitute a bytes.Buffer here).
func (rp *Report) SetWriter(w io.Writer) { rp.w = w }

// WriteHeader writes the archive-level summary block: file, head
// revision, branch, locks, access list, and symbolic names.
func (rp *Report) WriteHeader(r *archive.Repository, rcsfile, workfile string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "RCS file: %s\n", rcsfile)
	fmt.Fprintf(&b, "Working file: %s\n", workfile)
	headNum := ""
	if r.Head != archive.NoDelta {
		headNum = r.Get(r.Head).Num
	}
	fmt.Fprintf(&b, "head: %s\n", headNum)
	fmt.Fprintf(&b, "branch: %s\n", r.Branch)
	names := r.SymbolNames()
	fmt.Fprintf(&b, "symbolic names:\n")
	for _, name := range names {
		num, _ := r.Symbol(name)
		fmt.Fprintf(&b, "\t%s: %s\n", name, num)
	}
	fmt.Fprintf(&b, "locks:")
	if r.Strict {
		fmt.Fprintf(&b, " strict")
	}
	fmt.Fprintln(&b)
	for num, who := range r.Locks() {
		fmt.Fprintf(&b, "\t%s: %s\n", who, num)
	}
	fmt.Fprintf(&b, "access list:")
	for _, a := range r.Access {
		fmt.Fprintf(&b, " %s", a)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "keyword substitution: %s\n", r.Expand)
	fmt.Fprintf(&b, "total revisions: %d\n", len(r.Deltas))
	fmt.Fprintln(&b, "----------------------------")
	_, err := io.WriteString(rp.w, b.String())
	return err
}

// WriteEntries walks deltas in canonical traversal order (trunk head-down,
// then each delta's branches depth-first) and writes one
// entry per revision matching filter, with its log message materialized
// via getLog (typically archive/fro Materialize against the source Fro).
func (rp *Report) WriteEntries(r *archive.Repository, filter Filter, getLog func(*archive.Delta) (string, error)) error {
	order := traversalOrder(r)
	for _, id := range order {
		d := r.Get(id)
		if !filter.matches(r, d) {
			continue
		}
		logMsg, err := getLog(d)
		if err != nil {
			return err
		}
		if err := rp.writeEntry(d, logMsg); err != nil {
			return err
		}
	}
	return nil
}

func (rp *Report) writeEntry(d *archive.Delta, logMsg string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "revision %s\n", d.Num)
	fmt.Fprintf(&b, "date: %s;  author: %s;  state: %s;", rcsdate.Format(d.Date, true), d.Author, d.State)
	if d.LockedBy != "" {
		fmt.Fprintf(&b, "  locked by: %s;", d.LockedBy)
	}
	fmt.Fprintln(&b)
	b.WriteString(logMsg)
	if !strings.HasSuffix(logMsg, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintln(&b, "----------------------------")
	_, err := io.WriteString(rp.w, b.String())
	return err
}

// traversalOrder returns delta IDs in canonical order: the trunk from head
// down to its root, then, after each trunk delta, its branches and their
// descendants depth-first.
func traversalOrder(r *archive.Repository) []archive.DeltaID {
	var order []archive.DeltaID
	var walkChain func(id archive.DeltaID)
	walkChain = func(id archive.DeltaID) {
		for id != archive.NoDelta {
			d := r.Get(id)
			order = append(order, id)
			for _, b := range d.Branches {
				walkChain(b)
			}
			id = d.Next
		}
	}
	walkChain(r.Head)
	return order
}
