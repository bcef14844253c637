package archive

import (
	"strings"

	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
	"github.com/pkg/errors"
)

// SelectionCriteria narrows symbol/branch resolution to the most recent
// candidate matching all given (non-empty) fields.
type SelectionCriteria struct {
	Date   string // canonical date string; matches date <= this
	Author string
	State  string
}

func (c SelectionCriteria) matches(d *Delta) bool {
	if c.Date != "" {
		dateStr := rcsdate.Format(d.Date, true)
		if cmp, err := rcsdate.Compare(dateStr, c.Date); err != nil || cmp > 0 {
			return false
		}
	}
	if c.Author != "" && c.Author != d.Author {
		return false
	}
	if c.State != "" && c.State != d.State {
		return false
	}
	return true
}

// Resolve expands a possibly-symbolic revision designator to a numeric
// revision number. workingKeywordRev supplies the
// revision recorded in a working file's keyword values, consulted when
// the designator is the bare "$".
func Resolve(r *Repository, designator string, crit SelectionCriteria, workingKeywordRev string) (string, error) {
	switch {
	case designator == "":
		return defaultRevision(r)
	case designator == "$":
		if workingKeywordRev == "" {
			return "", errors.New("archive: no keyword revision available in working file")
		}
		return workingKeywordRev, nil
	case strings.HasPrefix(designator, "."):
		branch := r.Branch
		if branch == "" {
			return "", errors.New("archive: '.' designator requires a default branch")
		}
		return Resolve(r, branch+designator, crit, workingKeywordRev)
	}

	expanded, err := expandSymbolicFields(r, designator)
	if err != nil {
		return "", err
	}
	designator = revnum.Normalize(expanded)

	if strings.HasSuffix(designator, ".") {
		branch := strings.TrimSuffix(designator, ".")
		return latestOnBranch(r, branch, crit)
	}
	if num, ok := r.Symbol(designator); ok {
		if revnum.IsBranchDesignator(num) {
			return latestOnBranch(r, num, crit)
		}
		return num, nil
	}
	if revnum.IsBranchDesignator(designator) {
		return latestOnBranch(r, designator, crit)
	}
	if _, ok := r.DeltaByNum(designator); !ok {
		return "", errors.Errorf("archive: revision %s does not exist", designator)
	}
	return designator, nil
}

func defaultRevision(r *Repository) (string, error) {
	if r.Branch != "" {
		return latestOnBranch(r, r.Branch, SelectionCriteria{})
	}
	if r.Head == NoDelta {
		return "", errors.New("archive: empty repository has no default revision")
	}
	return r.Get(r.Head).Num, nil
}

// expandSymbolicFields implements "mixed numeric with embedded symbolic
// field prefixes": each dot-separated field of designator that is itself a
// known symbol is expanded in place before the whole thing is normalized.
func expandSymbolicFields(r *Repository, designator string) (string, error) {
	fields := strings.Split(designator, ".")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			out = append(out, f)
			continue
		}
		if isAllDigits(f) {
			out = append(out, f)
			continue
		}
		if num, ok := r.Symbol(f); ok {
			out = append(out, num)
			continue
		}
		if len(fields) == 1 {
			// A bare, non-numeric, unknown token: let the caller's
			// symbol/branch lookup below report it.
			return designator, nil
		}
		return "", errors.Errorf("archive: unknown symbolic field %q in %q", f, designator)
	}
	return strings.Join(out, "."), nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// candidatesOnBranch walks a branch in commit order: the branch point's
// first delta on that branch, then forward along Next, mirroring the
// "branch order" walk revision selection relies on. branch is a branch
// designator (odd field count); its parent revision is branch with its
// last field stripped, found directly rather than by walking the trunk,
// since that parent revision may itself live on a deeper branch.
func candidatesOnBranch(r *Repository, branch string) ([]*Delta, error) {
	if branch == "" {
		// Trunk: walk head downward via Next (reverse chronological).
		var cands []*Delta
		for id := r.Head; id != NoDelta; {
			d := r.Get(id)
			cands = append(cands, d)
			id = d.Next
		}
		return cands, nil
	}
	parentNum := revnum.Partial(branch, revnum.CountFields(branch)-1)
	parentID, ok := r.DeltaByNum(parentNum)
	if !ok {
		return nil, errors.Errorf("archive: branch %s has no parent revision %s", branch, parentNum)
	}
	var branchStart DeltaID = NoDelta
	for _, bid := range r.Get(parentID).Branches {
		if strings.HasPrefix(r.Get(bid).Num, branch+".") || r.Get(bid).Num == branch {
			branchStart = bid
			break
		}
	}
	if branchStart == NoDelta {
		return nil, errors.Errorf("archive: branch %s has no revisions", branch)
	}
	var cands []*Delta
	for id := branchStart; id != NoDelta; {
		d := r.Get(id)
		cands = append(cands, d)
		id = d.Next
	}
	return cands, nil
}

// latestOnBranch picks the most recent candidate on branch satisfying
// crit. candidatesOnBranch returns the trunk head-down (already most
// recent first) but a branch oldest-first (branch point first, increasing
// via Next), so the branch case is reversed here before scanning.
func latestOnBranch(r *Repository, branch string, crit SelectionCriteria) (string, error) {
	cands, err := candidatesOnBranch(r, branch)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", errors.Errorf("archive: branch %s has no revisions", branch)
	}
	mostRecentFirst := cands
	if branch != "" {
		mostRecentFirst = make([]*Delta, len(cands))
		for i, d := range cands {
			mostRecentFirst[len(cands)-1-i] = d
		}
	}
	if crit == (SelectionCriteria{}) {
		return mostRecentFirst[0].Num, nil
	}
	for _, d := range mostRecentFirst {
		if crit.matches(d) {
			return d.Num, nil
		}
	}
	return "", errors.Errorf("archive: no revision on branch %s matches date=%q author=%q state=%q",
		branch, crit.Date, crit.Author, crit.State)
}
