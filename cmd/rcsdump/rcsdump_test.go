// Tests for rcsdump

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
)

const sampleArchive = `head	1.2;
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
@Sample archive used in dump tests.
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

func parseSample(t *testing.T) *archive.Repository {
	f := fro.NewFromBytes("sample.c,v", []byte(sampleArchive))
	repo, _, err := archive.Parse(f)
	if err != nil {
		t.Fatalf("parsing sample archive: %v", err)
	}
	return repo
}

func TestDumpAdminNeverMaterializesDesc(t *testing.T) {
	repo := parseSample(t)
	var buf bytes.Buffer
	d := NewDumper(repo, &buf)
	d.DumpAdmin()
	out := buf.String()
	assert.Contains(t, out, "head:\t1.2")
	assert.Contains(t, out, "desc:\t")
	assert.Contains(t, out, "(not materialized)")
	assert.NotContains(t, out, "Sample archive used in dump tests.")
}

func TestDumpDeltasListsBothRevisions(t *testing.T) {
	repo := parseSample(t)
	var buf bytes.Buffer
	d := NewDumper(repo, &buf)
	d.DumpDeltas()
	out := buf.String()
	assert.Contains(t, out, "revision 1.2")
	assert.Contains(t, out, "revision 1.1")
	assert.Contains(t, out, "author: alice")
	assert.Contains(t, out, "next:\t1.1")
}

func TestDumpDeltasNeverMaterializesText(t *testing.T) {
	repo := parseSample(t)
	var buf bytes.Buffer
	d := NewDumper(repo, &buf)
	d.DumpDeltas()
	out := buf.String()
	assert.NotContains(t, out, "line one")
	assert.NotContains(t, out, "line two")
	assert.Contains(t, out, "text:\t")
	assert.True(t, strings.Count(out, "(not materialized)") >= 2)
}

func TestDumpDeltasReportsPendingTextWithoutSpans(t *testing.T) {
	repo := parseSample(t)
	pending := "freshly composed text, never written to disk"
	repo.Get(repo.Head).PendingText = &pending
	var buf bytes.Buffer
	d := NewDumper(repo, &buf)
	d.DumpDeltas()
	out := buf.String()
	assert.Contains(t, out, "text:\t")
	assert.Contains(t, out, "pending, not materialized")
	assert.NotContains(t, out, "freshly composed text")
}
