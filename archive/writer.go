package archive

import (
	"fmt"
	"io"
	"sort"

	"github.com/gnu-mirror-unofficial/rcs-go/fro"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
)

// Write serializes r back into the RCS archive grammar,
// reading unchanged deltatext/log/desc bodies straight out of src (when
// non-nil) via their recorded spans so untouched text survives byte-for-
// byte, and falling back to escaping PendingText/PendingLog/PendingDesc
// literally for anything synthesized in memory by the delta engine or an
// admin edit.
func Write(w io.Writer, r *Repository, src *fro.Fro) error {
	if err := writeAdmin(w, r); err != nil {
		return err
	}
	order := canonicalOrder(r)
	for _, id := range order {
		if err := writeDeltaHeader(w, r, r.Get(id)); err != nil {
			return err
		}
	}
	fmt.Fprint(w, "\n")
	if err := writeDesc(w, r, src); err != nil {
		return err
	}
	for _, id := range deltaTextOrder(r, order) {
		if err := writeDeltaText(w, r, src, r.Get(id)); err != nil {
			return err
		}
	}
	return nil
}

// deltaTextOrder lists the order deltatext bodies should be written in.
// Unlike headers, which always follow the canonical trunk/branches
// traversal, bodies from a parsed archive are preserved in their original
// source order (r.BodyOrder) so an untouched archive round-trips byte-for-
// byte; any delta not named in BodyOrder (freshly deposited, or r was
// never parsed from an archive) falls back to canonical position, appended
// after the ones whose recorded order is known.
func deltaTextOrder(r *Repository, canonical []DeltaID) []DeltaID {
	if len(r.BodyOrder) == 0 {
		return canonical
	}
	placed := make(map[DeltaID]bool, len(canonical))
	order := make([]DeltaID, 0, len(canonical))
	for _, num := range r.BodyOrder {
		id, ok := r.DeltaByNum(num)
		if !ok || placed[id] || r.Get(id).Phantom {
			continue
		}
		order = append(order, id)
		placed[id] = true
	}
	for _, id := range canonical {
		if !placed[id] {
			order = append(order, id)
			placed[id] = true
		}
	}
	return order
}

// canonicalOrder lists every non-phantom delta: the trunk from head
// downward, and after each trunk delta its branches depth-first.
// Phantom deltas (synthesized only to record a lock on a missing
// revision) are never written back as delta blocks, only as lock entries.
func canonicalOrder(r *Repository) []DeltaID {
	var order []DeltaID
	var walk func(id DeltaID)
	walk = func(id DeltaID) {
		for id != NoDelta {
			d := r.Get(id)
			if !d.Phantom {
				order = append(order, id)
			}
			for _, b := range d.Branches {
				walk(b)
			}
			id = d.Next
		}
	}
	walk(r.Head)
	return order
}

func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, "@"); err != nil {
		return err
	}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			if _, err := io.WriteString(w, s[start:i+1]); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "@"); err != nil {
				return err
			}
			start = i + 1
		}
	}
	if _, err := io.WriteString(w, s[start:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, "@")
	return err
}

// writeSpansRaw copies spans verbatim (already "@@"-escaped) from src,
// wrapped in "@...@" delimiters, without round-tripping through
// unescape+reescape.
func writeSpansRaw(w io.Writer, src *fro.Fro, spans []fro.Span) error {
	if _, err := io.WriteString(w, "@"); err != nil {
		return err
	}
	for _, sp := range spans {
		if err := src.SpewRange(w, sp.Begin, sp.End); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "@")
	return err
}

func writeAdmin(w io.Writer, r *Repository) error {
	if r.Head != NoDelta {
		fmt.Fprintf(w, "head\t%s;\n", r.Get(r.Head).Num)
	} else {
		fmt.Fprint(w, "head\t;\n")
	}
	if r.Branch != "" {
		fmt.Fprintf(w, "branch\t%s;\n", r.Branch)
	}
	fmt.Fprint(w, "access")
	for _, a := range r.Access {
		fmt.Fprintf(w, "\t%s", a)
	}
	fmt.Fprint(w, ";\n")
	fmt.Fprint(w, "symbols")
	for _, name := range r.SymbolNames() {
		num, _ := r.Symbol(name)
		fmt.Fprintf(w, "\n\t%s:%s", name, num)
	}
	fmt.Fprint(w, ";\n")
	fmt.Fprint(w, "locks")
	lockNums := make([]string, 0, len(r.Locks()))
	for num := range r.Locks() {
		lockNums = append(lockNums, num)
	}
	sort.Strings(lockNums)
	for _, num := range lockNums {
		fmt.Fprintf(w, "\n\t%s:%s", r.Locks()[num], num)
	}
	if r.Strict {
		fmt.Fprint(w, "; strict;\n")
	} else {
		fmt.Fprint(w, ";\n")
	}
	if r.Comment != "" {
		fmt.Fprint(w, "comment\t")
		if err := writeString(w, r.Comment); err != nil {
			return err
		}
		fmt.Fprint(w, ";\n")
	}
	if r.Expand != "" && r.Expand != "kv" {
		fmt.Fprint(w, "expand\t")
		if err := writeString(w, r.Expand); err != nil {
			return err
		}
		fmt.Fprint(w, ";\n")
	}
	fmt.Fprint(w, "\n")
	return nil
}

func writeDeltaHeader(w io.Writer, r *Repository, d *Delta) error {
	fmt.Fprintf(w, "\n%s\n", d.Num)
	fmt.Fprintf(w, "date\t%s;\tauthor %s;\tstate %s;\n", rcsdate.Format(d.Date, !d.DateWasY2), d.Author, d.State)
	fmt.Fprint(w, "branches")
	for _, b := range d.Branches {
		fmt.Fprintf(w, "\n\t%s", r.Get(b).Num)
	}
	fmt.Fprint(w, ";\n")
	next := ""
	if d.Next != NoDelta {
		next = r.Get(d.Next).Num
	}
	fmt.Fprintf(w, "next\t%s;\n", next)
	if d.CommitID != "" {
		fmt.Fprintf(w, "commitid\t%s;\n", d.CommitID)
	}
	return nil
}

func writeDesc(w io.Writer, r *Repository, src *fro.Fro) error {
	fmt.Fprint(w, "\ndesc\n")
	if r.PendingDesc != nil {
		if err := writeString(w, *r.PendingDesc); err != nil {
			return err
		}
	} else if src != nil {
		if err := writeSpansRaw(w, src, r.Desc); err != nil {
			return err
		}
	} else {
		if err := writeString(w, ""); err != nil {
			return err
		}
	}
	fmt.Fprint(w, "\n\n")
	return nil
}

func writeDeltaText(w io.Writer, r *Repository, src *fro.Fro, d *Delta) error {
	fmt.Fprintf(w, "\n%s\n", d.Num)
	fmt.Fprint(w, "log\n")
	if err := writeBody(w, src, d.PendingLog, d.Log); err != nil {
		return err
	}
	fmt.Fprint(w, "text\n")
	if err := writeBody(w, src, d.PendingText, d.Text); err != nil {
		return err
	}
	fmt.Fprint(w, "\n")
	return nil
}

func writeBody(w io.Writer, src *fro.Fro, pending *string, spans []fro.Span) error {
	if pending != nil {
		return writeString(w, *pending)
	}
	if src != nil {
		return writeSpansRaw(w, src, spans)
	}
	return writeString(w, "")
}
