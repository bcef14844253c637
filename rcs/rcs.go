// Package rcs orchestrates every other package into the command surface
// classic RCS offers: deposit (ci), retrieve (co), admin, rlog,
// rcsdiff, rcsmerge, and rcsclean, each built from the archive parser/
// writer, the delta engine, the keyword expander, the lock manager, and
// the diff/merge driver.
package rcs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/cleanup"
	"github.com/gnu-mirror-unofficial/rcs-go/config"
	"github.com/gnu-mirror-unofficial/rcs-go/delta"
	"github.com/gnu-mirror-unofficial/rcs-go/diffdriver"
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
	"github.com/gnu-mirror-unofficial/rcs-go/keyword"
	"github.com/gnu-mirror-unofficial/rcs-go/lock"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
)

// Opened bundles a parsed Repository with the Fro it was read from, since
// most operations need both (the Fro to materialize unchanged spans, the
// Repository to walk the graph).
type Opened struct {
	Repo *archive.Repository
	Fro  *fro.Fro
	Path string
}

// Open parses the archive at path.
func Open(path string, cfg *config.Config) (*Opened, error) {
	f, err := fro.Open(path, cfg.MemLimit)
	if err != nil {
		return nil, err
	}
	r, _, err := archive.Parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Opened{Repo: r, Fro: f, Path: path}, nil
}

// Close releases the backing Fro and the Repository's arena. Fro is nil
// for an Opened built around a brand-new archive that hasn't been saved
// yet, so only Repo is guaranteed to need closing.
func (o *Opened) Close() error {
	o.Repo.Close()
	if o.Fro == nil {
		return nil
	}
	return o.Fro.Close()
}

// Save writes o.Repo back to its archive path, through a lockfile and a
// temporary file swapped in via rename: acquire the lock, write to a sibling temp file, then rename
// it over the original so a crash mid-write never corrupts the archive in
// place.
func Save(reg *cleanup.Registry, o *Opened) error {
	lf, err := lock.Acquire(reg, o.Path, cleanup.Real)
	if err != nil {
		return err
	}
	defer lf.Release(reg)

	dir := filepath.Dir(o.Path)
	tmpPath := cleanup.NewTempName(dir, "rcs")
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0444)
	if err != nil {
		return errors.Wrap(err, "rcs: create temp archive")
	}
	sff := reg.Register(tmpPath, cleanup.Real)
	if err := archive.Write(tmpFile, o.Repo, o.Fro); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "rcs: write archive")
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, o.Path); err != nil {
		return errors.Wrap(err, "rcs: rename temp archive into place")
	}
	sff.Disposition = cleanup.NotMade
	reg.Release(sff)
	return nil
}

// Values builds a keyword.Values for revision num of an opened archive.
func Values(o *Opened, num, who string, zone rcsdate.Zone) (keyword.Values, error) {
	id, ok := o.Repo.DeltaByNum(num)
	if !ok {
		return keyword.Values{}, errors.Errorf("rcs: revision %s does not exist", num)
	}
	d := o.Repo.Get(id)
	locker, _ := o.Repo.Lock(num)
	name := ""
	for _, n := range o.Repo.SymbolNames() {
		if v, _ := o.Repo.Symbol(n); v == num {
			name = n
			break
		}
	}
	return keyword.Values{
		Author:   d.Author,
		Date:     rcsdate.Display(d.Date, zone),
		RCSfile:  filepath.Base(o.Path),
		Source:   o.Path,
		State:    d.State,
		Revision: num,
		Locker:   locker,
		Name:     name,
	}, nil
}

// CheckoutOptions controls a retrieve (co) operation.
type CheckoutOptions struct {
	Revision    string // designator; "" means default
	Author      string // selection filter, "" = any
	Date        string // selection filter, "" = any
	State       string
	Mode        keyword.Mode // "" defaults to the archive's own admin expand mode
	Lock        string       // locker identifier; Checkout itself records no lock
	Zone        rcsdate.Zone
	WorkingKwRev string // supplies "$" designator resolution
}

// Checkout reconstructs a revision's text and applies keyword substitution,
// mirroring classic RCS's retrieve operation. It does not write the working
// file; callers decide where the text goes (stdout, a path, or a caller-
// supplied writer) and whether to actually persist a lock via Lock.
func Checkout(o *Opened, opts CheckoutOptions) (text, resolvedRev string, err error) {
	crit := archive.SelectionCriteria{Date: opts.Date, Author: opts.Author, State: opts.State}
	num, err := archive.Resolve(o.Repo, opts.Revision, crit, opts.WorkingKwRev)
	if err != nil {
		return "", "", err
	}
	raw, err := delta.Reconstruct(o.Repo, o.Fro, num)
	if err != nil {
		return "", "", err
	}
	mode := opts.Mode
	if mode == "" {
		mode, err = keyword.ParseMode(o.Repo.Expand)
		if err != nil {
			return "", "", err
		}
	}
	vals, err := Values(o, num, opts.Lock, opts.Zone)
	if err != nil {
		return "", "", err
	}
	return keyword.ExpandText(raw, mode, vals), num, nil
}

// CheckinOptions controls a deposit (ci) operation.
type CheckinOptions struct {
	WorkingText string // already-read working-file content
	Revision    string // explicit target revision/branch designator; "" picks the next trunk revision
	Author      string
	Message     string
	State       string // "" defaults to "Exp"
	Lock        string // "" = leave unlocked after check-in
	Zone        rcsdate.Zone
	Leader      string // comment leader for $Log$ insertion, e.g. "# " or "// "
}

// nextTrunkRevision computes the next revision number after the current
// head, or "1.1" for an empty archive.
func nextTrunkRevision(r *archive.Repository) string {
	if r.Head == archive.NoDelta {
		return "1.1"
	}
	return revnum.Increment(r.Get(r.Head).Num)
}

// PolicyError reports a well-formed request refused by a business rule —
// a lock held by someone else — rather than
// a structural failure like a missing revision or a malformed archive.
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

// latestOnBranch returns the highest-numbered existing delta on the given
// branch designator (e.g. "1.2.1"), or "" if the branch has no deltas yet.
func latestOnBranch(r *archive.Repository, designator string) string {
	prefix := designator + "."
	depth := revnum.CountFields(designator) + 1
	best := ""
	for _, d := range r.Deltas {
		if !strings.HasPrefix(d.Num, prefix) || revnum.CountFields(d.Num) != depth {
			continue
		}
		if best == "" || revnum.CmpNumField(d.Num, best, depth) > 0 {
			best = d.Num
		}
	}
	return best
}

// resolveDepositTarget turns the caller's requested target revision (""
// for the default trunk successor, a branch designator for "next on this
// branch", or an explicit revision/branch number) into the concrete new
// revision number to create and the existing revision it is spliced in
// after. The repository must already have a trunk head.
func resolveDepositTarget(r *archive.Repository, requested string) (newNum, parentNum string, err error) {
	if requested == "" {
		return nextTrunkRevision(r), r.Get(r.Head).Num, nil
	}

	requested = revnum.Normalize(requested)

	if revnum.IsBranchDesignator(requested) {
		if latest := latestOnBranch(r, requested); latest != "" {
			return revnum.Increment(latest), latest, nil
		}
		branchPoint := revnum.Partial(requested, revnum.CountFields(requested)-1)
		if _, ok := r.DeltaByNum(branchPoint); !ok {
			return "", "", errors.Errorf("rcs: branch point %s does not exist", branchPoint)
		}
		return requested + ".1", branchPoint, nil
	}

	if revnum.IsBranch(requested) {
		if _, exists := r.DeltaByNum(requested); exists {
			return "", "", errors.Errorf("rcs: revision %s already exists", requested)
		}
		if strings.HasSuffix(requested, ".1") {
			parentNum = revnum.Partial(requested, revnum.CountFields(requested)-2)
		} else {
			parentNum = revnum.Decrement(requested)
		}
		if _, ok := r.DeltaByNum(parentNum); !ok {
			return "", "", errors.Errorf("rcs: revision %s does not exist", parentNum)
		}
		return requested, parentNum, nil
	}

	// Explicit trunk revision: deposited as the new head, same as the
	// default case.
	return requested, r.Get(r.Head).Num, nil
}

// Checkin deposits WorkingText as a new revision, mirroring classic RCS's
// deposit operation: it strips keyword values back to bare markers before
// diffing (so a substituted $Revision$ never looks like a content change),
// computes the edit script against the current tip, splices in the new
// delta, and expands $Log$ in the stored deltatext. The caller is
// responsible for calling Save afterward.
func Checkin(o *Opened, opts CheckinOptions) (newRevision string, err error) {
	stripped := keyword.Strip(opts.WorkingText)

	newNum := opts.Revision
	if newNum != "" {
		newNum = revnum.Normalize(newNum)
	}

	state := opts.State
	if state == "" {
		state = "Exp"
	}

	now := time.Now().UTC()
	logLeader := func(text, rcsfile string) string {
		if opts.Leader == "" {
			return text
		}
		vals := keyword.Values{Author: opts.Author, Date: rcsdate.Display(now, opts.Zone), RCSfile: rcsfile, Revision: newNum}
		return keyword.ExpandLog(text, keyword.KV, vals, opts.Leader, opts.Message)
	}

	if o.Repo.Head == archive.NoDelta {
		// First revision ever: no parent to diff against.
		if newNum == "" {
			newNum = "1.1"
		}
		if o.Repo.Expand == "kv" {
			o.Repo.Expand = string(keyword.DetectMode([]byte(opts.WorkingText)))
		}
		text := logLeader(stripped, filepath.Base(o.Path))
		d := &archive.Delta{
			Num:    newNum,
			Date:   now,
			Author: opts.Author,
			State:  state,
			Next:   archive.NoDelta,
		}
		d.PendingText = &text
		empty := ""
		d.PendingLog = &empty
		setMessage(d, opts.Message)
		id := o.Repo.AddDelta(d)
		o.Repo.Head = id
	} else {
		var parentNum string
		newNum, parentNum, err = resolveDepositTarget(o.Repo, newNum)
		if err != nil {
			return "", err
		}
		if holder, locked := o.Repo.Lock(parentNum); locked && holder != opts.Author {
			return "", &PolicyError{Message: fmt.Sprintf("revision %s locked by %s", parentNum, holder)}
		}
		finalText := logLeader(stripped, filepath.Base(o.Path))
		newText, demotedText, promotesHead, err := delta.Deposit(o.Repo, o.Fro, parentNum, newNum, finalText)
		if err != nil {
			return "", err
		}
		d := &archive.Delta{
			Num:    newNum,
			Date:   now,
			Author: opts.Author,
			State:  state,
		}
		setMessage(d, opts.Message)
		if promotesHead {
			oldHead := o.Repo.Get(o.Repo.Head)
			oldHead.PendingText = &demotedText
			d.PendingText = &newText
			d.Next = o.Repo.Head
			id := o.Repo.AddDelta(d)
			o.Repo.Head = id
		} else {
			d.PendingText = &newText
			d.Next = archive.NoDelta
			parentID, _ := o.Repo.DeltaByNum(parentNum)
			id := o.Repo.AddDelta(d)
			if revnum.CountFields(newNum) == revnum.CountFields(parentNum) {
				// Continuing an existing branch: link forward in its
				// chain (a branch delta's Next is the younger delta).
				o.Repo.Get(parentID).Next = id
			} else {
				// Sprouting a new branch off parentNum.
				o.Repo.Get(parentID).Branches = append(o.Repo.Get(parentID).Branches, id)
			}
		}
	}

	if opts.Lock != "" {
		o.Repo.SetLock(newNum, opts.Lock)
	} else {
		o.Repo.ClearLock(newNum)
	}
	return newNum, nil
}

func setMessage(d *archive.Delta, message string) {
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	d.PendingLog = &message
}

// AdminOptions names the archive-level edits `rcs` (admin mode) supports.
type AdminOptions struct {
	SetState       map[string]string // revision -> new state
	SetComment     *string
	SetDesc        *string
	SetExpand      *string
	SetStrict      *bool
	AddAccess      []string
	RemoveAccess   []string
	AddSymbol      map[string]string // name -> revision/branch
	RemoveSymbol   []string
	LockRevision   map[string]string // revision -> who
	UnlockRevision []string
	Outdate        []string // revisions to delete outright
}

// Admin applies every requested edit to o.Repo in place, mirroring
// classic RCS's admin operation. The caller calls Save afterward.
func Admin(o *Opened, opts AdminOptions) error {
	for num, state := range opts.SetState {
		id, ok := o.Repo.DeltaByNum(revnum.Normalize(num))
		if !ok {
			return errors.Errorf("rcs: revision %s does not exist", num)
		}
		o.Repo.Get(id).State = state
	}
	if opts.SetComment != nil {
		o.Repo.Comment = *opts.SetComment
	}
	if opts.SetDesc != nil {
		o.Repo.PendingDesc = opts.SetDesc
	}
	if opts.SetExpand != nil {
		if _, err := keyword.ParseMode(*opts.SetExpand); err != nil {
			return err
		}
		o.Repo.Expand = *opts.SetExpand
	}
	if opts.SetStrict != nil {
		o.Repo.Strict = *opts.SetStrict
	}
	o.Repo.Access = append(o.Repo.Access, opts.AddAccess...)
	for _, a := range opts.RemoveAccess {
		filtered := o.Repo.Access[:0]
		for _, existing := range o.Repo.Access {
			if existing != a {
				filtered = append(filtered, existing)
			}
		}
		o.Repo.Access = filtered
	}
	for name, num := range opts.AddSymbol {
		o.Repo.SetSymbol(name, revnum.Normalize(num))
	}
	for _, name := range opts.RemoveSymbol {
		o.Repo.DeleteSymbol(name)
	}
	for num, who := range opts.LockRevision {
		if err := lock.Add(o.Repo, revnum.Normalize(num), who, true); err != nil {
			return err
		}
	}
	for _, num := range opts.UnlockRevision {
		o.Repo.ClearLock(revnum.Normalize(num))
	}
	if len(opts.Outdate) > 0 {
		if err := delta.Outdate(o.Repo, o.Fro, opts.Outdate); err != nil {
			return err
		}
	}
	return nil
}

// Diff computes a diff between two revisions of an archive with the
// built-in differ (diffdriver.UnifiedText), returning human-readable
// unified text for display. cfg is not consulted and no external diff
// binary is run.
func Diff(o *Opened, cfg *config.Config, fromRev, toRev string) (string, error) {
	fromText, err := delta.Reconstruct(o.Repo, o.Fro, revnum.Normalize(fromRev))
	if err != nil {
		return "", err
	}
	toText, err := delta.Reconstruct(o.Repo, o.Fro, revnum.Normalize(toRev))
	if err != nil {
		return "", err
	}
	return diffdriver.UnifiedText(fromText, toText,
		fmt.Sprintf("%s\t%s", o.Path, fromRev), fmt.Sprintf("%s\t%s", o.Path, toRev))
}

// Clean reports whether the working file at workingPath is identical to
// revision rev once keyword markers are normalized out of both sides, an
// rcsclean-equivalent supplemented feature: ci/co never
// need to run if nothing actually changed.
func Clean(o *Opened, workingPath, rev string) (identical bool, err error) {
	data, err := os.ReadFile(workingPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	num := revnum.Normalize(rev)
	if num == "" {
		if o.Repo.Head == archive.NoDelta {
			return false, nil
		}
		num = o.Repo.Get(o.Repo.Head).Num
	}
	archived, err := delta.Reconstruct(o.Repo, o.Fro, num)
	if err != nil {
		return false, err
	}
	return keyword.Strip(string(data)) == keyword.Strip(archived), nil
}
