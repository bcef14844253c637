package rcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/cleanup"
	"github.com/gnu-mirror-unofficial/rcs-go/config"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
)

func newArchivePath(t *testing.T) string {
	dir := t.TempDir()
	return filepath.Join(dir, "foo.c,v")
}

func writeEmptyArchive(t *testing.T, path string) {
	r := archive.NewRepository()
	desc := ""
	r.PendingDesc = &desc
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, archive.Write(f, r, nil))
}

func openArchive(t *testing.T, path string) *Opened {
	cfg := config.Default()
	o, err := Open(path, cfg)
	require.NoError(t, err)
	return o
}

func TestCheckinFirstRevisionThenCheckout(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)
	defer o.Close()

	rev, err := Checkin(o, CheckinOptions{
		WorkingText: "line one\nline two\n",
		Author:      "alice",
		Message:     "initial revision",
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1", rev)

	reg := &cleanup.Registry{}
	require.NoError(t, Save(reg, o))
	o.Close()

	o2 := openArchive(t, path)
	defer o2.Close()
	text, resolvedRev, err := Checkout(o2, CheckoutOptions{Zone: rcsdate.Zone{Name: "UTC"}})
	require.NoError(t, err)
	assert.Equal(t, "1.1", resolvedRev)
	assert.Equal(t, "line one\nline two\n", text)
}

func TestCheckinSecondRevisionThenCheckoutBoth(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	_, err := Checkin(o, CheckinOptions{
		WorkingText: "line one\nline two\n",
		Author:      "alice",
		Message:     "rev 1",
	})
	require.NoError(t, err)
	reg := &cleanup.Registry{}
	require.NoError(t, Save(reg, o))
	o.Close()

	o = openArchive(t, path)
	rev2, err := Checkin(o, CheckinOptions{
		WorkingText: "line one\nline two\nline three\n",
		Author:      "bob",
		Message:     "rev 2",
	})
	require.NoError(t, err)
	assert.Equal(t, "1.2", rev2)
	require.NoError(t, Save(reg, o))
	o.Close()

	o = openArchive(t, path)
	defer o.Close()

	headText, headRev, err := Checkout(o, CheckoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1.2", headRev)
	assert.Equal(t, "line one\nline two\nline three\n", headText)

	oldText, oldRev, err := Checkout(o, CheckoutOptions{Revision: "1.1"})
	require.NoError(t, err)
	assert.Equal(t, "1.1", oldRev)
	assert.Equal(t, "line one\nline two\n", oldText)
}

func TestCheckinWithLockThenAdminUnlock(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	rev, err := Checkin(o, CheckinOptions{
		WorkingText: "content\n",
		Author:      "alice",
		Message:     "locked revision",
		Lock:        "alice",
	})
	require.NoError(t, err)
	who, ok := o.Repo.Lock(rev)
	require.True(t, ok)
	assert.Equal(t, "alice", who)

	require.NoError(t, Admin(o, AdminOptions{UnlockRevision: []string{rev}}))
	_, ok = o.Repo.Lock(rev)
	assert.False(t, ok)
}

func TestCloseOnFreshlyCreatedArchiveWithNoFro(t *testing.T) {
	o := &Opened{Repo: archive.NewRepository(), Path: newArchivePath(t)}
	assert.NoError(t, o.Close())
}

func TestCheckinBranchRevisionSplicesIntoParentsBranches(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)
	defer o.Close()

	rev1, err := Checkin(o, CheckinOptions{WorkingText: "A\nB\n", Author: "alice", Message: "trunk"})
	require.NoError(t, err)
	assert.Equal(t, "1.1", rev1)

	rev2, err := Checkin(o, CheckinOptions{
		WorkingText: "A\nB\nX\n",
		Revision:    "1.1.1.1",
		Author:      "alice",
		Message:     "side branch",
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1", rev2)

	parentID, ok := o.Repo.DeltaByNum("1.1")
	require.True(t, ok)
	branchID, ok := o.Repo.DeltaByNum("1.1.1.1")
	require.True(t, ok)
	assert.Contains(t, o.Repo.Get(parentID).Branches, branchID)

	text, resolvedRev, err := Checkout(o, CheckoutOptions{Revision: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1", resolvedRev)
	assert.Equal(t, "A\nB\nX\n", text)

	// 1.1 itself must still reconstruct unchanged.
	trunkText, _, err := Checkout(o, CheckoutOptions{Revision: "1.1"})
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", trunkText)
}

func TestCheckinBranchDesignatorPicksUpNextOnExistingBranch(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)
	defer o.Close()

	_, err := Checkin(o, CheckinOptions{WorkingText: "A\n", Author: "alice", Message: "trunk"})
	require.NoError(t, err)
	_, err = Checkin(o, CheckinOptions{WorkingText: "A\nX\n", Revision: "1.1.1.1", Author: "alice", Message: "branch start"})
	require.NoError(t, err)

	rev, err := Checkin(o, CheckinOptions{
		WorkingText: "A\nX\nY\n",
		Revision:    "1.1.1",
		Author:      "alice",
		Message:     "branch continue",
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.2", rev)

	text, _, err := Checkout(o, CheckoutOptions{Revision: "1.1.1.2"})
	require.NoError(t, err)
	assert.Equal(t, "A\nX\nY\n", text)
}

func TestCheckinRefusesLockHeldByAnotherAuthor(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)
	defer o.Close()

	_, err := Checkin(o, CheckinOptions{WorkingText: "one\n", Author: "alice", Message: "rev 1"})
	require.NoError(t, err)
	rev2, err := Checkin(o, CheckinOptions{WorkingText: "one\ntwo\n", Author: "alice", Message: "rev 2", Lock: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "1.2", rev2)

	_, err = Checkin(o, CheckinOptions{WorkingText: "one\ntwo\nthree\n", Author: "alice", Message: "rev 3"})
	require.Error(t, err)
	var polErr *PolicyError
	require.ErrorAs(t, err, &polErr)
	assert.Equal(t, "revision 1.2 locked by bob", polErr.Error())

	// The archive must be unchanged: still no 1.3, head still 1.2.
	_, ok := o.Repo.DeltaByNum("1.3")
	assert.False(t, ok)
	assert.Equal(t, "1.2", o.Repo.Get(o.Repo.Head).Num)
}

func TestAdminAddsSymbolAndSetsState(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	rev, err := Checkin(o, CheckinOptions{WorkingText: "x\n", Author: "alice", Message: "m"})
	require.NoError(t, err)

	require.NoError(t, Admin(o, AdminOptions{
		AddSymbol: map[string]string{"REL1": rev},
		SetState:  map[string]string{rev: "Stab"},
	}))

	num, ok := o.Repo.Symbol("REL1")
	require.True(t, ok)
	assert.Equal(t, rev, num)
	id, _ := o.Repo.DeltaByNum(rev)
	assert.Equal(t, "Stab", o.Repo.Get(id).State)
}

func TestDiffReportsChangedLines(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	_, err := Checkin(o, CheckinOptions{WorkingText: "a\nb\n", Author: "alice", Message: "rev 1"})
	require.NoError(t, err)
	reg := &cleanup.Registry{}
	require.NoError(t, Save(reg, o))
	o.Close()

	o = openArchive(t, path)
	_, err = Checkin(o, CheckinOptions{WorkingText: "a\nc\n", Author: "alice", Message: "rev 2"})
	require.NoError(t, err)

	out, err := Diff(o, config.Default(), "1.1", "1.2")
	require.NoError(t, err)
	assert.Contains(t, out, "-b")
	assert.Contains(t, out, "+c")
}

func TestCleanReportsIdenticalAndDifferent(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	_, err := Checkin(o, CheckinOptions{WorkingText: "same\n", Author: "alice", Message: "m"})
	require.NoError(t, err)

	dir := t.TempDir()
	workingPath := filepath.Join(dir, "foo.c")
	require.NoError(t, os.WriteFile(workingPath, []byte("same\n"), 0644))

	identical, err := Clean(o, workingPath, "")
	require.NoError(t, err)
	assert.True(t, identical)

	require.NoError(t, os.WriteFile(workingPath, []byte("different\n"), 0644))
	identical, err = Clean(o, workingPath, "")
	require.NoError(t, err)
	assert.False(t, identical)
}

func TestCleanMissingWorkingFileIsNotIdentical(t *testing.T) {
	path := newArchivePath(t)
	writeEmptyArchive(t, path)
	o := openArchive(t, path)

	identical, err := Clean(o, filepath.Join(t.TempDir(), "missing.c"), "")
	require.NoError(t, err)
	assert.False(t, identical)
}
