package ingest

import (
	"errors"
	"testing"

	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

func fileID(label string) identity.Identifier {
	return identity.Hash([]byte(label))
}

func undeletedChangeSet(t *testing.T) *changeset.ChangeSet {
	t.Helper()
	cs := changeset.New()
	if err := cs.AddFileWithID("usr/bin/cat", fileID("cat")); err != nil {
		t.Fatalf("AddFileWithID: %v", err)
	}
	// Bypass the builder API directly: legacy history can produce a
	// rearrangement that both deletes and re-adds the same path, which no
	// newly constructed change-set would ever do through DeleteFile/AddFile.
	cs.Rearrangement.DeletedFiles["usr/bin/cat"] = struct{}{}
	return cs
}

func TestIngestChangeSetRejectsUndeleteByDefault(t *testing.T) {
	cs := undeletedChangeSet(t)
	ctx := NewSanityContext()
	err := IngestChangeSet(cs, ctx)
	if err == nil {
		t.Fatal("expected an error for an undeleted path under a non-relaxed context")
	}
	if !errors.Is(err, vcserr.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}
}

type collectingSink struct {
	messages []string
}

func (s *collectingSink) Warnf(format string, args ...interface{}) {
	s.messages = append(s.messages, format)
}

func TestIngestChangeSetWarnsUnderRelaxed(t *testing.T) {
	cs := undeletedChangeSet(t)
	sink := &collectingSink{}
	ctx := &SanityContext{Relaxed: true, Log: sink}
	if err := IngestChangeSet(cs, ctx); err != nil {
		t.Fatalf("IngestChangeSet under relaxed context: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", len(sink.messages), sink.messages)
	}
	// The original change-set is untouched: relaxed ingest collapses a copy
	// for validation purposes, not the caller's own value.
	if _, ok := cs.Rearrangement.DeletedFiles["usr/bin/cat"]; !ok {
		t.Error("IngestChangeSet must not mutate its input")
	}
}

func TestIngestChangeSetCleanCase(t *testing.T) {
	cs := changeset.New()
	if err := cs.AddFileWithID("usr/bin/cat", fileID("cat")); err != nil {
		t.Fatalf("AddFileWithID: %v", err)
	}
	if err := IngestChangeSet(cs, NewSanityContext()); err != nil {
		t.Errorf("IngestChangeSet on a clean change-set: %v", err)
	}
}

func TestCanonicalizePathRejectsEmptyNameByDefault(t *testing.T) {
	if _, err := CanonicalizePath("usr//cat", NewSanityContext()); err == nil {
		t.Fatal("expected rejection of an empty-name path under a non-relaxed context")
	}
}

func TestCanonicalizePathRewritesUnderRelaxed(t *testing.T) {
	sink := &collectingSink{}
	ctx := &SanityContext{Relaxed: true, Log: sink}
	canonical, err := CanonicalizePath("usr//cat", ctx)
	if err != nil {
		t.Fatalf("CanonicalizePath under relaxed context: %v", err)
	}
	if canonical == "usr//cat" {
		t.Errorf("expected the empty component to be rewritten, got %q", canonical)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(sink.messages))
	}
}

func TestIngestChangeSetRecordedCapturesWarnings(t *testing.T) {
	cs := undeletedChangeSet(t)
	ctx := &SanityContext{Relaxed: true}
	rev := identity.Hash([]byte("rev"))
	rec, err := IngestChangeSetRecorded(cs, rev, ctx)
	if err != nil {
		t.Fatalf("IngestChangeSetRecorded: %v", err)
	}
	if !rec.Relaxed {
		t.Error("expected Record.Relaxed to be true")
	}
	if len(rec.Warnings) != 1 {
		t.Fatalf("expected one recorded warning, got %d", len(rec.Warnings))
	}
	if rec.Revision != rev {
		t.Errorf("Record.Revision = %s, want %s", rec.Revision, rev)
	}
}
