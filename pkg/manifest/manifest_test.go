package manifest

import (
	"testing"

	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
)

func id(label string) identity.Identifier {
	return identity.Hash([]byte(label))
}

func TestBuildPureAdditionChangeSet(t *testing.T) {
	m := Manifest{
		"usr/bin/cat": id("cat"),
		"usr/bin/ls":  id("ls"),
	}
	cs, err := BuildPureAdditionChangeSet(m)
	if err != nil {
		t.Fatalf("BuildPureAdditionChangeSet: %v", err)
	}
	if err := cs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	out, err := ApplyChangeSet(Manifest{}, cs)
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if len(out) != len(m) {
		t.Fatalf("got %d entries, want %d", len(out), len(m))
	}
	for p, want := range m {
		if got := out[p]; got != want {
			t.Errorf("path %q: got %v want %v", p, got, want)
		}
	}
}

func TestApplyInvertRoundTrip(t *testing.T) {
	mOld := Manifest{
		"usr/foo":   id("X"),
		"usr/quuux": id("Y"),
	}
	cs := changeset.New()
	if err := cs.RenameFile("usr/foo", "usr/bar"); err != nil {
		t.Fatal(err)
	}
	if err := cs.ApplyDelta("usr/bar", id("X"), id("Y2")); err != nil {
		t.Fatal(err)
	}
	if err := cs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mNew, err := ApplyChangeSet(mOld, cs)
	if err != nil {
		t.Fatalf("ApplyChangeSet: %v", err)
	}
	if mNew["usr/bar"] != id("Y2") {
		t.Errorf("usr/bar = %v, want %v", mNew["usr/bar"], id("Y2"))
	}
	if _, ok := mNew["usr/foo"]; ok {
		t.Errorf("usr/foo should be gone after rename")
	}

	inv, err := changeset.Invert(cs, changeset.PreManifest(mOld))
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	back, err := ApplyChangeSet(mNew, inv)
	if err != nil {
		t.Fatalf("ApplyChangeSet(inverse): %v", err)
	}
	if back["usr/foo"] != id("X") {
		t.Errorf("round trip usr/foo = %v, want %v", back["usr/foo"], id("X"))
	}
	if back["usr/quuux"] != id("Y") {
		t.Errorf("round trip usr/quuux = %v, want %v", back["usr/quuux"], id("Y"))
	}
}

func TestCompleteChangeSet(t *testing.T) {
	mOld := Manifest{"usr/foo": id("X")}
	mNew := Manifest{"usr/bar": id("Y")}

	cs := changeset.New()
	if err := cs.RenameFile("usr/foo", "usr/bar"); err != nil {
		t.Fatal(err)
	}
	if err := CompleteChangeSet(mOld, mNew, cs); err != nil {
		t.Fatalf("CompleteChangeSet: %v", err)
	}
	d, ok := cs.Deltas["usr/bar"]
	if !ok {
		t.Fatalf("expected a delta for usr/bar")
	}
	if d.Src != id("X") || d.Dst != id("Y") {
		t.Errorf("delta = %+v, want X->Y", d)
	}
}
