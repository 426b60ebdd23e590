package changeset

import (
	"testing"

	"github.com/dscherger/monotone-core/pkg/identity"
)

// buildSample returns a change-set exercising every stanza kind: a delete,
// an add with its delta, a rename with a content change, and a patch on an
// otherwise untouched path.
func buildSample(t *testing.T) *ChangeSet {
	t.Helper()
	cs := New()
	must(t, cs.DeleteFile("usr/lib/zombie"))
	must(t, cs.AddFile("usr/bin/cat"))
	must(t, cs.ApplyDelta("usr/bin/cat", identity.Null, id("cat")))
	must(t, cs.RenameFile("usr/foo", "usr/bar"))
	must(t, cs.ApplyDelta("usr/bar", id("X"), id("Y")))
	must(t, cs.ApplyDelta("usr/quuux", id("Y"), id("Z")))
	must(t, cs.Validate())
	return cs
}

func TestNormalizeIsIdempotent(t *testing.T) {
	cs := buildSample(t)
	once, err := Normalize(cs)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("Normalize(Normalize): %v", err)
	}
	equal, err := Equal(once, twice)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !equal {
		t.Errorf("normalization is not idempotent")
	}
}

func TestConcatenationIdentity(t *testing.T) {
	cs := buildSample(t)
	empty := New()

	leftIdentity, err := Concatenate(empty, cs)
	if err != nil {
		t.Fatalf("Concatenate(empty, cs): %v", err)
	}
	if equal, err := Equal(leftIdentity, cs); err != nil || !equal {
		t.Errorf("empty ∘ A != A (equal=%v, err=%v)", equal, err)
	}

	rightIdentity, err := Concatenate(cs, empty)
	if err != nil {
		t.Fatalf("Concatenate(cs, empty): %v", err)
	}
	if equal, err := Equal(rightIdentity, cs); err != nil || !equal {
		t.Errorf("A ∘ empty != A (equal=%v, err=%v)", equal, err)
	}
}

func TestConcatenationAssociativity(t *testing.T) {
	a := New()
	must(t, a.AddFile("a"))
	must(t, a.ApplyDelta("a", identity.Null, id("a1")))

	b := New()
	must(t, b.RenameFile("a", "b"))

	c := New()
	must(t, c.ApplyDelta("b", id("a1"), id("a2")))

	ab, err := Concatenate(a, b)
	if err != nil {
		t.Fatalf("Concatenate(a, b): %v", err)
	}
	abThenC, err := Concatenate(ab, c)
	if err != nil {
		t.Fatalf("Concatenate(ab, c): %v", err)
	}

	bc, err := Concatenate(b, c)
	if err != nil {
		t.Fatalf("Concatenate(b, c): %v", err)
	}
	aThenBC, err := Concatenate(a, bc)
	if err != nil {
		t.Fatalf("Concatenate(a, bc): %v", err)
	}

	equal, err := Equal(abThenC, aThenBC)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !equal {
		sLeft, _ := Serialize(abThenC)
		sRight, _ := Serialize(aThenBC)
		t.Errorf("(A∘B)∘C != A∘(B∘C):\n%s\nvs\n%s", sLeft, sRight)
	}
}

func TestInversionRoundTrip(t *testing.T) {
	cs := New()
	must(t, cs.RenameFile("usr/foo", "usr/bar"))
	must(t, cs.ApplyDelta("usr/bar", id("X"), id("Y")))
	must(t, cs.ApplyDelta("usr/quuux", id("Y"), id("Z")))

	pre := PreManifest{"usr/foo": id("X"), "usr/quuux": id("Y")}
	inv, err := Invert(cs, pre)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	forward, err := Concatenate(cs, inv)
	if err != nil {
		t.Fatalf("Concatenate(cs, inv): %v", err)
	}
	if !forward.Rearrangement.IsEmpty() || len(forward.Deltas) != 0 {
		s, _ := Serialize(forward)
		t.Errorf("A ∘ invert(A) is not empty:\n%s", s)
	}

	backward, err := Concatenate(inv, cs)
	if err != nil {
		t.Fatalf("Concatenate(inv, cs): %v", err)
	}
	if !backward.Rearrangement.IsEmpty() || len(backward.Deltas) != 0 {
		s, _ := Serialize(backward)
		t.Errorf("invert(A) ∘ A is not empty:\n%s", s)
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	cs := buildSample(t)
	printed, err := Serialize(cs)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Parse(printed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if equal, err := Equal(parsed, cs); err != nil || !equal {
		t.Errorf("parse(print(A)) != A (equal=%v, err=%v)", equal, err)
	}
	reprinted, err := Serialize(parsed)
	if err != nil {
		t.Fatalf("Serialize(Parse): %v", err)
	}
	if reprinted != printed {
		t.Errorf("print(parse(print(A))) differs bitwise:\n%q\nvs\n%q", reprinted, printed)
	}
}
