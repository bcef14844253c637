package delta

import (
	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
	"github.com/pkg/errors"
)

// buildParentMap walks the whole delta graph once from the repository head,
// following both Next (trunk/branch continuation) and Branches (side-branch
// start) edges, and records for each delta the one delta whose reconstructed
// text its own deltatext diff is applied against, mirroring classic RCS's
// "gen_deltas". The head itself has no entry: its Text holds a full
// snapshot.
func buildParentMap(r *archive.Repository) map[archive.DeltaID]archive.DeltaID {
	parent := map[archive.DeltaID]archive.DeltaID{}
	if r.Head == archive.NoDelta {
		return parent
	}
	queue := []archive.DeltaID{r.Head}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		d := r.Get(id)
		if d.Next != archive.NoDelta {
			if _, seen := parent[d.Next]; !seen {
				parent[d.Next] = id
				queue = append(queue, d.Next)
			}
		}
		for _, b := range d.Branches {
			if _, seen := parent[b]; !seen {
				parent[b] = id
				queue = append(queue, b)
			}
		}
	}
	return parent
}

// Chain is the ordered list of deltas (root-to-target, root excluded) whose
// diffs must be applied in turn to reconstruct a revision, plus the root
// (head) delta that holds the starting full text.
type Chain struct {
	Root  archive.DeltaID
	Steps []archive.DeltaID
}

// GenPath computes the reconstruction chain for the delta id. It fails
// if id is not reachable from the repository head.
func GenPath(r *archive.Repository, id archive.DeltaID) (Chain, error) {
	if r.Head == archive.NoDelta {
		return Chain{}, errors.New("delta: repository is empty")
	}
	parent := buildParentMap(r)
	var rev []archive.DeltaID
	cur := id
	for {
		rev = append(rev, cur)
		p, ok := parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	if rev[len(rev)-1] != r.Head {
		return Chain{}, errors.Errorf("delta: revision is not reachable from head")
	}
	steps := make([]archive.DeltaID, len(rev)-1)
	for i, j := 0, len(rev)-2; j >= 0; i, j = i+1, j-1 {
		steps[i] = rev[j]
	}
	return Chain{Root: r.Head, Steps: steps}, nil
}

func materializeDeltatext(f *fro.Fro, d *archive.Delta) (string, error) {
	if d.PendingText != nil {
		return *d.PendingText, nil
	}
	return fro.MaterializeString(f, d.Text)
}

// Reconstruct produces the full text of revision num, mirroring classic
// RCS's checkout algorithm: start from the head's stored snapshot and walk the
// path to num, applying each delta's own edit script to the running text in
// turn (trunk deltas carry reverse diffs toward the root; branch deltas
// carry forward diffs away from their branch point — GenPath's Steps order
// already accounts for the direction either way).
func Reconstruct(r *archive.Repository, f *fro.Fro, num string) (string, error) {
	num = revnum.Normalize(num)
	id, ok := r.DeltaByNum(num)
	if !ok {
		return "", errors.Errorf("delta: revision %s does not exist", num)
	}
	chain, err := GenPath(r, id)
	if err != nil {
		return "", err
	}
	text, err := materializeDeltatext(f, r.Get(chain.Root))
	if err != nil {
		return "", err
	}
	for _, sid := range chain.Steps {
		d := r.Get(sid)
		raw, err := materializeDeltatext(f, d)
		if err != nil {
			return "", err
		}
		ops, err := ParseScript(raw)
		if err != nil {
			return "", errors.Wrapf(err, "delta: revision %s", d.Num)
		}
		text, err = Apply(text, ops)
		if err != nil {
			return "", errors.Wrapf(err, "delta: revision %s", d.Num)
		}
	}
	return text, nil
}

// Deposit splices a brand-new delta for newText into the graph as a child
// of parentNum, mirroring classic RCS's deposit algorithm. It returns the raw
// deltatext string to store on the new delta and, when parentNum was the
// trunk head, the reverse-diff text to store on the demoted old head (the
// new head holds the full snapshot, since the head never holds a diff).
//
// Two shapes are handled:
//   - New trunk head: parentNum is the current head's Num. The new delta
//     becomes head and stores newText verbatim; the old head is demoted to
//     a regular trunk delta and gets the reverse diff old<-new in its Text.
//   - New branch tip: parentNum is an existing delta anywhere in the graph
//     that is not being promoted to head. The new delta stores the forward
//     diff parent->new in its Text.
func Deposit(r *archive.Repository, f *fro.Fro, parentNum, newNum, newText string) (newDeltaText string, demotedParentText string, promotesHead bool, err error) {
	parentID, ok := r.DeltaByNum(parentNum)
	if !ok {
		return "", "", false, errors.Errorf("delta: parent revision %s does not exist", parentNum)
	}
	parentText, err := Reconstruct(r, f, parentNum)
	if err != nil {
		return "", "", false, err
	}
	if parentID == r.Head && !revnum.IsBranch(newNum) {
		// Promoting a new trunk tip: old head demotes to holding the
		// reverse diff, new delta becomes head holding full text.
		reverseOps := DiffToScript(newText, parentText)
		return newText, FormatScript(reverseOps), true, nil
	}
	forwardOps := DiffToScript(parentText, newText)
	return FormatScript(forwardOps), "", false, nil
}

// Outdate removes the given revisions from the repository, mirroring
// classic RCS's cuthead/cuttail deletion, recomposing neighboring deltas' edit scripts so
// reconstruction of every surviving revision is unaffected. Each of nums
// must name an existing revision; a locked revision, or one with branches
// sprouting from it, is rejected. The set is not checked for contiguity.
func Outdate(r *archive.Repository, f *fro.Fro, nums []string) error {
	if len(nums) == 0 {
		return nil
	}
	ids := make([]archive.DeltaID, 0, len(nums))
	for _, n := range nums {
		id, ok := r.DeltaByNum(revnum.Normalize(n))
		if !ok {
			return errors.Errorf("delta: revision %s does not exist", n)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		d := r.Get(id)
		if d.LockedBy != "" {
			return errors.Errorf("delta: revision %s is locked by %s", d.Num, d.LockedBy)
		}
		if len(d.Branches) > 0 {
			return errors.Errorf("delta: revision %s has branches depending on it", d.Num)
		}
	}
	parent := buildParentMap(r)
	removeSet := map[archive.DeltaID]bool{}
	for _, id := range ids {
		removeSet[id] = true
	}
	for _, id := range ids {
		// Rebuilt each pass: an earlier removal in this loop relinks the graph.
		parent = buildParentMap(r)
		d := r.Get(id)
		p, hasParent := parent[id]
		next := d.Next

		if id == r.Head {
			if next == archive.NoDelta {
				return errors.New("delta: cannot outdate the only revision")
			}
			nextDelta := r.Get(next)
			fullText, err := Reconstruct(r, f, nextDelta.Num)
			if err != nil {
				return err
			}
			nextDelta.PendingText = &fullText
			r.Head = next
			unlinkFromParent(r, parent, id)
			continue
		}

		if hasParent && next != archive.NoDelta {
			// Interior revision: recompose parent->next directly,
			// skipping over the removed node.
			parentText, err := Reconstruct(r, f, r.Get(p).Num)
			if err != nil {
				return err
			}
			nextText, err := Reconstruct(r, f, r.Get(next).Num)
			if err != nil {
				return err
			}
			recomposed := FormatScript(DiffToScript(parentText, nextText))
			r.Get(next).PendingText = &recomposed
			relinkParent(r, p, id, next)
			continue
		}

		// Leaf: simply detach.
		unlinkFromParent(r, parent, id)
	}
	for _, id := range ids {
		r.Forget(r.Get(id).Num)
	}
	return nil
}

func unlinkFromParent(r *archive.Repository, parent map[archive.DeltaID]archive.DeltaID, id archive.DeltaID) {
	p, ok := parent[id]
	if !ok {
		return
	}
	pd := r.Get(p)
	if pd.Next == id {
		pd.Next = archive.NoDelta
		return
	}
	for i, b := range pd.Branches {
		if b == id {
			pd.Branches = append(pd.Branches[:i], pd.Branches[i+1:]...)
			return
		}
	}
}

func relinkParent(r *archive.Repository, p, removed, next archive.DeltaID) {
	pd := r.Get(p)
	if pd.Next == removed {
		pd.Next = next
		return
	}
	for i, b := range pd.Branches {
		if b == removed {
			pd.Branches[i] = next
			return
		}
	}
}

