package changeset

import (
	"errors"
	"testing"

	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

func id(label string) identity.Identifier {
	return identity.Hash([]byte(label))
}

func TestScenario1TrivialAdd(t *testing.T) {
	cs := New()
	catID := id("cat")
	if err := cs.AddFileWithID("usr/bin/cat", catID); err != nil {
		t.Fatalf("AddFileWithID: %v", err)
	}
	if err := cs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	text, err := Serialize(cs)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	text2, err := Serialize(reparsed)
	if err != nil {
		t.Fatalf("Serialize reparsed: %v", err)
	}
	if text != text2 {
		t.Errorf("round trip mismatch:\n%q\n%q", text, text2)
	}
}

func TestScenario2Invert(t *testing.T) {
	cs := New()
	if err := cs.DeleteFile("usr/lib/zombie"); err != nil {
		t.Fatal(err)
	}
	if err := cs.AddFile("usr/bin/cat"); err != nil {
		t.Fatal(err)
	}
	catID := id("cat")
	if err := cs.ApplyDelta("usr/bin/cat", identity.Null, catID); err != nil {
		t.Fatal(err)
	}
	if err := cs.RenameFile("usr/foo", "usr/bar"); err != nil {
		t.Fatal(err)
	}
	xID, yID, zID, zPrimeID := id("X"), id("Y"), id("Z"), id("Zp")
	if err := cs.ApplyDelta("usr/bar", xID, yID); err != nil {
		t.Fatal(err)
	}
	if err := cs.ApplyDelta("usr/quuux", yID, zID); err != nil {
		t.Fatal(err)
	}
	if err := cs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pre := PreManifest{
		"usr/lib/zombie": zPrimeID,
		"usr/foo":         xID,
		"usr/quuux":       yID,
	}
	inv, err := Invert(cs, pre)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	if _, ok := inv.Rearrangement.AddedFiles["usr/lib/zombie"]; !ok {
		t.Errorf("expected usr/lib/zombie to be re-added in the inverse")
	}
	if d := inv.Deltas["usr/lib/zombie"]; d.Dst != zPrimeID || !d.Src.IsNull() {
		t.Errorf("usr/lib/zombie delta = %+v, want null->%v", d, zPrimeID)
	}
	if _, ok := inv.Rearrangement.DeletedFiles["usr/bin/cat"]; !ok {
		t.Errorf("expected usr/bin/cat to be deleted in the inverse")
	}
	if dst, ok := inv.Rearrangement.RenamedFiles["usr/bar"]; !ok || dst != "usr/foo" {
		t.Errorf("expected usr/bar -> usr/foo, got %v %v", dst, ok)
	}
	if d := inv.Deltas["usr/foo"]; d.Src != yID || d.Dst != xID {
		t.Errorf("usr/foo delta = %+v, want %v->%v", d, yID, xID)
	}
	if d := inv.Deltas["usr/quuux"]; d.Src != zID || d.Dst != yID {
		t.Errorf("usr/quuux delta = %+v, want %v->%v", d, zID, yID)
	}
}

func TestScenario3Neutralization(t *testing.T) {
	a := New()
	must(t, a.AddFile("usr/lib/zombie"))
	must(t, a.ApplyDelta("usr/lib/zombie", identity.Null, id("zombie")))
	must(t, a.RenameFile("usr/lib/apple", "usr/lib/orange"))
	must(t, a.RenameDir("usr/lib/moose", "usr/lib/squirrel"))

	b := New()
	must(t, b.DeleteFile("usr/lib/zombie"))
	must(t, b.RenameFile("usr/lib/orange", "usr/lib/apple"))
	must(t, b.RenameDir("usr/lib/squirrel", "usr/lib/moose"))

	result, err := Concatenate(a, b)
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	if !result.Rearrangement.IsEmpty() {
		t.Errorf("expected empty rearrangement, got %+v", result.Rearrangement)
	}
	if len(result.Deltas) != 0 {
		t.Errorf("expected no deltas, got %+v", result.Deltas)
	}
}

func TestScenario4NonInterferingConcatenation(t *testing.T) {
	a := New()
	must(t, a.DeleteFile("zombie"))
	must(t, a.RenameFile("orange", "apple"))
	must(t, a.RenameDir("squirrel", "moose"))

	b := New()
	must(t, b.AddFile("zombie"))
	must(t, b.ApplyDelta("zombie", identity.Null, id("zombie2")))
	must(t, b.RenameFile("pear", "orange"))
	must(t, b.RenameDir("spy", "squirrel"))

	result, err := Concatenate(a, b)
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	// The delete and the add name distinct entities, so both survive; none
	// of the renames chain, since no rename's destination in A is a
	// rename's source in B.
	if _, ok := result.Rearrangement.DeletedFiles["zombie"]; !ok {
		t.Errorf("expected the deletion of zombie to survive: %+v", result.Rearrangement)
	}
	if _, ok := result.Rearrangement.AddedFiles["zombie"]; !ok {
		t.Errorf("expected the re-add of zombie to survive: %+v", result.Rearrangement)
	}
	if dst := result.Rearrangement.RenamedFiles["orange"]; dst != "apple" {
		t.Errorf("expected orange -> apple, got %q", dst)
	}
	if dst := result.Rearrangement.RenamedFiles["pear"]; dst != "orange" {
		t.Errorf("expected pear -> orange, got %q", dst)
	}
	if dst := result.Rearrangement.RenamedDirs["squirrel"]; dst != "moose" {
		t.Errorf("expected squirrel -> moose, got %q", dst)
	}
	if dst := result.Rearrangement.RenamedDirs["spy"]; dst != "squirrel" {
		t.Errorf("expected spy -> squirrel, got %q", dst)
	}
	if d, ok := result.Deltas["zombie"]; !ok || !d.Src.IsNull() || d.Dst != id("zombie2") {
		t.Errorf("expected zombie's add delta to survive, got %+v", result.Deltas)
	}
}

func TestScenario5BadConcatenationDetected(t *testing.T) {
	a := New()
	must(t, a.AddFile("foo"))
	must(t, a.ApplyDelta("foo", identity.Null, id("foo")))

	b := New()
	must(t, b.AddFile("foo"))
	must(t, b.ApplyDelta("foo", identity.Null, id("foo2")))

	if _, err := Concatenate(a, b); err == nil || !errors.Is(err, vcserr.ErrIncompatibleConcatenation) {
		t.Fatalf("expected ErrIncompatibleConcatenation, got %v", err)
	}

	a2 := New()
	must(t, a2.RenameFile("a", "target"))
	b2 := New()
	must(t, b2.RenameFile("b", "target"))
	if _, err := Concatenate(a2, b2); err == nil {
		t.Fatalf("expected an error concatenating two renames into the same target")
	}
}

func TestApplyDeltaRejectsNullDestination(t *testing.T) {
	cs := New()
	if err := cs.ApplyDelta("a", identity.Null, identity.Null); err == nil {
		t.Fatalf("expected error for null destination")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
