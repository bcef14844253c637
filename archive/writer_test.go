package archive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnu-mirror-unofficial/rcs-go/fro"
)

func TestWriteThenReparseRoundTrips(t *testing.T) {
	src := `head	1.2;
access;
symbols;
locks; strict;
comment	@# @;


1.2
date	2024.01.02.03.04.05;	author alice;	state Exp;
branches;
next	1.1;

1.1
date	2024.01.01.00.00.00;	author alice;	state Exp;
branches;
next	;


desc
@Round trip test.
@


1.2
log
@Second revision.
@
text
@line one
line two
@


1.1
log
@Initial revision.
@
text
@line one
@
`
	f := fro.NewFromBytes("round.c,v", []byte(src))
	repo, _, err := Parse(f)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, repo, f))

	repo2, _, err := Parse(fro.NewFromBytes("round.c,v", buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, repo.Get(repo.Head).Num, repo2.Get(repo2.Head).Num)
	for _, num := range []string{"1.1", "1.2"} {
		id1, ok1 := repo.DeltaByNum(num)
		id2, ok2 := repo2.DeltaByNum(num)
		require.True(t, ok1)
		require.True(t, ok2)
		got, err := fro.MaterializeString(f, repo.Get(id1).Text)
		require.NoError(t, err)
		reTxt, err := fro.MaterializeString(fro.NewFromBytes("round.c,v", buf.Bytes()), repo2.Get(id2).Text)
		require.NoError(t, err)
		assert.Equal(t, got, reTxt)
	}
}

func TestCanonicalOrderSkipsPhantomsAndOrdersBranchesDepthFirst(t *testing.T) {
	r := NewRepository()
	id11 := r.AddDelta(&Delta{Num: "1.1", Next: NoDelta})
	id12 := r.AddDelta(&Delta{Num: "1.2", Next: id11})
	branchTip := r.AddDelta(&Delta{Num: "1.2.1.1", Next: NoDelta})
	phantom := r.AddDelta(&Delta{Num: "1.3", Next: NoDelta, Phantom: true})
	r.Get(id12).Branches = append(r.Get(id12).Branches, branchTip, phantom)
	r.Head = id12

	order := canonicalOrder(r)
	var nums []string
	for _, id := range order {
		nums = append(nums, r.Get(id).Num)
	}
	assert.Equal(t, []string{"1.2", "1.2.1.1", "1.1"}, nums)
}

func TestWritePreservesSourceBodyOrderButCanonicalHeaderOrder(t *testing.T) {
	// Headers always read head-down (1.2 then 1.1), but this source
	// archive's deltatext bodies were written ascending (1.1 then 1.2).
	src := `head	1.2;
access;
symbols;
locks; strict;

1.2
date	2024.01.02.03.04.05;	author alice;	state Exp;
branches;
next	1.1;

1.1
date	2024.01.01.00.00.00;	author alice;	state Exp;
branches;
next	;


desc
@d.
@


1.1
log
@Initial revision.
@
text
@line one
@


1.2
log
@Second revision.
@
text
@line one
line two
@
`
	f := fro.NewFromBytes("order.c,v", []byte(src))
	repo, _, err := Parse(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1", "1.2"}, repo.BodyOrder)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, repo, f))
	out := buf.String()

	headerIdx1 := strings.Index(out, "\n1.1\ndate")
	headerIdx2 := strings.Index(out, "\n1.2\ndate")
	require.True(t, headerIdx1 >= 0 && headerIdx2 >= 0)
	assert.Less(t, headerIdx2, headerIdx1, "headers stay in canonical head-down order")

	bodyIdx1 := strings.Index(out, "\n1.1\nlog")
	bodyIdx2 := strings.Index(out, "\n1.2\nlog")
	require.True(t, bodyIdx1 >= 0 && bodyIdx2 >= 0)
	assert.Less(t, bodyIdx1, bodyIdx2, "bodies stay in source order")
}

func TestWriteEscapesAtSigns(t *testing.T) {
	r := NewRepository()
	text := "has @ sign"
	id := r.AddDelta(&Delta{Num: "1.1", Next: NoDelta, State: "Exp", PendingText: &text})
	empty := ""
	r.Get(id).PendingLog = &empty
	r.Head = id
	desc := ""
	r.PendingDesc = &desc

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, nil))
	assert.Contains(t, buf.String(), "has @@ sign")
}
