package rlog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
)

func buildReportRepo() *archive.Repository {
	r := archive.NewRepository()
	id11 := r.AddDelta(&archive.Delta{
		Num:    "1.1",
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Author: "alice",
		State:  "Exp",
		Next:   archive.NoDelta,
	})
	id12 := r.AddDelta(&archive.Delta{
		Num:    "1.2",
		Date:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Author: "bob",
		State:  "Exp",
		Next:   id11,
	})
	branchTip := r.AddDelta(&archive.Delta{
		Num:    "1.1.1.1",
		Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Author: "carol",
		State:  "Exp",
		Next:   archive.NoDelta,
	})
	r.Get(id11).Branches = append(r.Get(id11).Branches, branchTip)
	r.Head = id12
	return r
}

func staticLog(d *archive.Delta) (string, error) {
	return "log for " + d.Num + "\n", nil
}

func TestWriteHeaderIncludesHeadAndSymbols(t *testing.T) {
	r := buildReportRepo()
	r.SetSymbol("REL1", "1.1")
	var buf strings.Builder
	rp := New(&buf)
	require.NoError(t, rp.WriteHeader(r, "foo.c,v", "foo.c"))
	out := buf.String()
	assert.Contains(t, out, "head: 1.2")
	assert.Contains(t, out, "REL1: 1.1")
	assert.Contains(t, out, "total revisions: 3")
}

func TestWriteEntriesVisitsAllRevisionsInCanonicalOrder(t *testing.T) {
	r := buildReportRepo()
	var buf strings.Builder
	rp := New(&buf)
	require.NoError(t, rp.WriteEntries(r, Filter{}, staticLog))
	out := buf.String()

	i2 := strings.Index(out, "revision 1.2")
	i1 := strings.Index(out, "revision 1.1\n")
	ib := strings.Index(out, "revision 1.1.1.1")
	require.True(t, i2 >= 0 && i1 >= 0 && ib >= 0)
	assert.True(t, i2 < i1, "trunk head should come before trunk root")
	assert.True(t, i1 < ib, "branch entries come after the revision they branch from")
}

func TestWriteEntriesFiltersByBranchDesignator(t *testing.T) {
	r := buildReportRepo()
	var buf strings.Builder
	rp := New(&buf)
	require.NoError(t, rp.WriteEntries(r, Filter{Revisions: []string{"1.1.1"}}, staticLog))
	out := buf.String()
	assert.Contains(t, out, "revision 1.1.1.1")
	assert.NotContains(t, out, "revision 1.1\n")
	assert.NotContains(t, out, "revision 1.2")
}

func TestWriteEntriesFiltersByAuthor(t *testing.T) {
	r := buildReportRepo()
	var buf strings.Builder
	rp := New(&buf)
	require.NoError(t, rp.WriteEntries(r, Filter{Author: "bob"}, staticLog))
	out := buf.String()
	assert.Contains(t, out, "revision 1.2")
	assert.NotContains(t, out, "revision 1.1\n")
}

func TestWriteEntriesFiltersByDateRange(t *testing.T) {
	r := buildReportRepo()
	var buf strings.Builder
	rp := New(&buf)
	filter := Filter{DateFrom: "2024.02.01.00.00.00", DateTo: "2024.12.01.00.00.00"}
	require.NoError(t, rp.WriteEntries(r, filter, staticLog))
	out := buf.String()
	assert.Contains(t, out, "revision 1.2")
	assert.Contains(t, out, "revision 1.1.1.1")
	assert.NotContains(t, out, "revision 1.1\n")
}

func TestWriteEntriesFiltersLockedOnly(t *testing.T) {
	r := buildReportRepo()
	r.SetLock("1.2", "bob")
	var buf strings.Builder
	rp := New(&buf)
	require.NoError(t, rp.WriteEntries(r, Filter{LockedOnly: true}, staticLog))
	out := buf.String()
	assert.Contains(t, out, "revision 1.2")
	assert.Contains(t, out, "locked by: bob")
	assert.NotContains(t, out, "revision 1.1\n")
}

func TestSetWriterRedirectsOutput(t *testing.T) {
	var first, second strings.Builder
	rp := New(&first)
	rp.SetWriter(&second)
	require.NoError(t, rp.WriteEntries(buildReportRepo(), Filter{Revisions: []string{"1.2"}}, staticLog))
	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "revision 1.2")
}
