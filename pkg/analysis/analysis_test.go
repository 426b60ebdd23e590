package analysis

import (
	"errors"
	"testing"

	"github.com/dscherger/monotone-core/pkg/vcserr"
)

func rearr() *Rearrangement { return NewRearrangement() }

func TestAnalyzeSimpleAddDelete(t *testing.T) {
	r := rearr()
	r.AddedFiles["usr/bin/cat"] = struct{}{}
	r.DeletedFiles["usr/lib/zombie"] = struct{}{}

	a, err := Analyze(r)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := EnsureValid(a); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}

	back, err := Compose(a)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, ok := back.AddedFiles["usr/bin/cat"]; !ok {
		t.Errorf("expected usr/bin/cat in composed AddedFiles")
	}
	if _, ok := back.DeletedFiles["usr/lib/zombie"]; !ok {
		t.Errorf("expected usr/lib/zombie in composed DeletedFiles")
	}
}

func TestAnalyzeRenameSharesAncestor(t *testing.T) {
	r := rearr()
	r.RenamedFiles["usr/foo"] = "usr/bar"
	r.DeletedFiles["usr/quuux"] = struct{}{}

	a, err := Analyze(r)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// "usr" should resolve to a single tid shared by both operations.
	var usrTIDs []TID
	for t, e := range a.Pre {
		if e.Kind == KindDirectory && e.Name == "usr" {
			usrTIDs = append(usrTIDs, t)
		}
	}
	if len(usrTIDs) != 1 {
		t.Fatalf("expected exactly one 'usr' tid, got %d", len(usrTIDs))
	}
}

func TestComposeNeutralizesSelfCancellingRename(t *testing.T) {
	r := rearr()
	r.RenamedFiles["a"] = "b"
	a, err := Analyze(r)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	r2 := rearr()
	r2.RenamedFiles["b"] = "a"
	_ = r2
	// Copy pre over post for every tid of a to simulate "rename then its
	// inverse" collapsing to identity, exercising the Compose "equal on both
	// sides -> skip" path.
	for t, pre := range a.Pre {
		a.Post[t] = pre
	}
	out, err := Compose(a)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !out.IsEmpty() {
		t.Errorf("expected empty rearrangement, got %+v", out)
	}
}

func TestEnsureValidDetectsNameCollision(t *testing.T) {
	a := &Analysis{
		Pre: PathState{
			1: {Parent: RootTID, Kind: KindFile, Name: "x"},
			2: {Parent: RootTID, Kind: KindFile, Name: "x"},
		},
		Post: PathState{
			1: {Parent: RootTID, Kind: KindFile, Name: "x"},
			2: {Parent: RootTID, Kind: KindFile, Name: "x"},
		},
	}
	err := EnsureValid(a)
	if err == nil || !errors.Is(err, vcserr.ErrNameCollision) {
		t.Fatalf("expected ErrNameCollision, got %v", err)
	}
}

func TestEnsureValidDetectsCycle(t *testing.T) {
	a := &Analysis{
		Pre: PathState{
			1: {Parent: 2, Kind: KindDirectory, Name: "a"},
			2: {Parent: 1, Kind: KindDirectory, Name: "b"},
		},
		Post: PathState{
			1: {Parent: 2, Kind: KindDirectory, Name: "a"},
			2: {Parent: 1, Kind: KindDirectory, Name: "b"},
		},
	}
	err := EnsureValid(a)
	if err == nil || !errors.Is(err, vcserr.ErrStructuralCycle) {
		t.Fatalf("expected ErrStructuralCycle, got %v", err)
	}
}

func TestReconstructPathThroughRename(t *testing.T) {
	r := rearr()
	r.RenamedDirs["usr/lib"] = "usr/libexec"
	a, err := Analyze(r)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got, err := ReconstructPath(a, "usr/lib/foo.so", true)
	if err != nil {
		t.Fatalf("ReconstructPath: %v", err)
	}
	if got != "usr/libexec/foo.so" {
		t.Errorf("got %q, want usr/libexec/foo.so", got)
	}
}
