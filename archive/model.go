// Package archive implements the RCS archive grammar: the lexer that
// tokenizes it, the parser that builds an in-memory Repository from it,
// and the writer that emits one back out.
package archive

import (
	"time"

	"github.com/gnu-mirror-unofficial/rcs-go/arena"
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
)

// DeltaID is a stable index into a Repository's delta slice. Links between
// deltas (branches, the "next" chain, locks) are expressed as DeltaIDs
// instead of pointers so the whole graph — including its cycles through
// branches/next/locks — can be owned by a flat slice with no back-pointers
// that could outlive it.
type DeltaID int

// NoDelta is the zero value meaning "no such reference".
const NoDelta DeltaID = -1

// Delta is one node in the revision graph.
type Delta struct {
	Num       string    // revision number, e.g. "1.2.3.4"
	Date      time.Time // parsed canonical date
	DateWasY2 bool      // true if the stored date omitted the "19" prefix
	Author    string
	State     string // default "Exp"
	CommitID  string // optional extension field

	LockedBy string // identifier, or "" if unlocked; mirrors Repository.Locks

	Branches []DeltaID // ordered; each starts a side branch
	Next     DeltaID   // "next" in the grammar; see Ilk below for direction

	Log  []fro.Span // spans covering the log message body (raw, "@@"-escaped)
	Text []fro.Span // spans covering the deltatext body

	// PendingLog/PendingText hold literal (already-unescaped) replacement
	// content for a delta that was created or recomposed in memory and
	// therefore has no backing byte range in the source Fro. When set,
	// these take precedence over the Log/Text spans.
	PendingLog  *string
	PendingText *string

	Neck int64 // byte offset where this delta's deltatext block begins

	Selected bool // used by rlog filtering and by deletion

	Phantom bool // true if synthesized for a lock on a missing revision

	// nextNum/branchNums hold the raw grammar references until the
	// parser's post-pass (checkConsistency) resolves them to DeltaIDs,
	// since the grammar allows forward references to revisions not yet
	// seen.
	nextNum    string
	branchNums []string
}

// Ilk returns the delta that Delta's text is a diff *relative to*: for a
// trunk delta this is the older trunk delta (edits are reverse diffs), for
// a branch delta it's the younger branch delta (edits are forward diffs).
// It is simply an alias for Next, named for the "next delta in the
// direction edits flow" relationship the grammar's "next" field encodes;
// we expose both names because callers reasoning about reconstruction
// read more naturally against "Ilk".
func (d *Delta) Ilk() DeltaID { return d.Next }

// Repository is the in-memory archive.
type Repository struct {
	Head    DeltaID // tip of the trunk, or NoDelta
	headNum string  // raw "head" revision number until checkConsistency resolves it
	Branch  string   // optional default branch number, "" if unset

	Access []string // ordered, access list

	symbolNames []string          // insertion order
	symbols     map[string]string // name -> revision/branch number

	locks     map[string]string // revision number -> identifier
	Strict    bool
	Comment   string // legacy comment leader, pre-v5
	Expand    string // default keyword substitution mode; "kv" if unset

	Deltas []*Delta          // index == DeltaID
	byNum  map[string]DeltaID

	Desc        []fro.Span // span(s) covering the free-form description
	PendingDesc *string    // literal replacement description, if set (admin -t)
	Neck        int64      // byte offset where the "desc" clause begins

	// BodyOrder records the revision numbers in the order their deltatext
	// bodies appeared in the source archive, so the writer can preserve
	// that order for unchanged deltas instead of re-deriving it from the
	// delta graph. Empty for a Repository that was never parsed from an
	// archive (e.g. one built fresh by ci's first check-in).
	BodyOrder []string

	Source *fro.Fro // the archive file this repository was parsed from, if any

	// Arena backs the strings the parser materializes out of the
	// archive's admin "@...@" bodies (comment leader, expand mode) so
	// they are grouped into one bump-allocated Space instead of each
	// becoming an independent garbage-collector-tracked string, then
	// freed in one shot by Close. Symbol names and log/description text
	// are not allocated from it. A Repository built directly (not via
	// Parse) gets an empty, harmless Space.
	Arena *arena.Space
}

// NewRepository returns an empty, ready-to-populate Repository.
func NewRepository() *Repository {
	return &Repository{
		Head:    NoDelta,
		symbols: map[string]string{},
		locks:   map[string]string{},
		byNum:   map[string]DeltaID{},
		Expand:  "kv",
		Arena:   arena.NewSpace(),
	}
}

// Close releases the Repository's arena. Safe to call on a Repository that
// was never parsed or whose Arena is nil.
func (r *Repository) Close() {
	if r.Arena != nil {
		r.Arena.Close()
	}
}

// DeltaByNum looks up a delta by its exact revision number string.
func (r *Repository) DeltaByNum(num string) (DeltaID, bool) {
	id, ok := r.byNum[num]
	return id, ok
}

// Get dereferences a DeltaID. It panics on NoDelta or an out-of-range id,
// since those indicate a parser or engine bug, not recoverable user input.
func (r *Repository) Get(id DeltaID) *Delta {
	return r.Deltas[id]
}

// AddDelta appends a new delta, indexing it by number, and returns its ID.
// The caller must not already have a delta with this Num.
func (r *Repository) AddDelta(d *Delta) DeltaID {
	id := DeltaID(len(r.Deltas))
	r.Deltas = append(r.Deltas, d)
	r.byNum[d.Num] = id
	return id
}

// Forget removes num from the number->DeltaID index, so Resolve and
// DeltaByNum report it as nonexistent. The underlying *Delta, if still
// linked into the graph by something other than byNum, is untouched; used
// by the delta engine's Outdate after unlinking a revision from its
// neighbors.
func (r *Repository) Forget(num string) {
	delete(r.byNum, num)
}

// SymbolNames returns symbol names in insertion order.
func (r *Repository) SymbolNames() []string { return r.symbolNames }

// Symbol looks up a symbolic name.
func (r *Repository) Symbol(name string) (string, bool) {
	num, ok := r.symbols[name]
	return num, ok
}

// SetSymbol inserts or overwrites a symbolic name -> revision/branch
// mapping, preserving first-insertion order.
func (r *Repository) SetSymbol(name, num string) {
	if _, exists := r.symbols[name]; !exists {
		r.symbolNames = append(r.symbolNames, name)
	}
	r.symbols[name] = num
}

// DeleteSymbol removes a symbolic name.
func (r *Repository) DeleteSymbol(name string) {
	if _, exists := r.symbols[name]; !exists {
		return
	}
	delete(r.symbols, name)
	for i, n := range r.symbolNames {
		if n == name {
			r.symbolNames = append(r.symbolNames[:i], r.symbolNames[i+1:]...)
			break
		}
	}
}

// Lock returns the identifier holding a lock on revision num, if any.
func (r *Repository) Lock(num string) (string, bool) {
	who, ok := r.locks[num]
	return who, ok
}

// Locks returns the revision->identifier lock map directly. Its iteration
// order is random; callers that need a stable order sort the keys (as the
// writer does).
func (r *Repository) Locks() map[string]string { return r.locks }

// SetLock records who as holding a lock on revision num, keeping the
// corresponding Delta.LockedBy in sync.
func (r *Repository) SetLock(num, who string) {
	r.locks[num] = who
	if id, ok := r.byNum[num]; ok {
		r.Deltas[id].LockedBy = who
	}
}

// ClearLock removes any lock on revision num.
func (r *Repository) ClearLock(num string) {
	delete(r.locks, num)
	if id, ok := r.byNum[num]; ok {
		r.Deltas[id].LockedBy = ""
	}
}
