package ancestry

import (
	"testing"

	"github.com/dscherger/monotone-core/pkg/identity"
)

// fakeGraph is a small in-memory ParentSource/HeightSource used to exercise
// the algorithms against a hand-built revision DAG:
//
//	R -- A -- C -- M (merge of C, D)
//	      \-- D ---/
type fakeGraph struct {
	parents map[identity.Identifier][]identity.Identifier
	heights map[identity.Identifier]Height
}

func (g *fakeGraph) Parents(id identity.Identifier) ([]identity.Identifier, error) {
	return g.parents[id], nil
}

func (g *fakeGraph) Height(id identity.Identifier) (Height, error) {
	return g.heights[id], nil
}

func rid(label string) identity.Identifier {
	return identity.Hash([]byte(label))
}

func buildFixture() (*fakeGraph, map[string]identity.Identifier) {
	ids := map[string]identity.Identifier{
		"R": rid("R"), "A": rid("A"), "C": rid("C"), "D": rid("D"), "M": rid("M"),
	}
	g := &fakeGraph{
		parents: map[identity.Identifier][]identity.Identifier{
			ids["R"]: nil,
			ids["A"]: {ids["R"]},
			ids["C"]: {ids["A"]},
			ids["D"]: {ids["A"]},
			ids["M"]: {ids["C"], ids["D"]},
		},
		heights: map[identity.Identifier]Height{},
	}
	g.heights[ids["R"]] = RootHeight()
	g.heights[ids["A"]] = ChildHeight(g.heights[ids["R"]], 0)
	g.heights[ids["C"]] = ChildHeight(g.heights[ids["A"]], 0)
	g.heights[ids["D"]] = ChildHeight(g.heights[ids["A"]], 1)
	g.heights[ids["M"]] = ChildHeight(g.heights[ids["C"]], 1)
	return g, ids
}

func TestHeightOrderingConsistentWithAncestry(t *testing.T) {
	g, ids := buildFixture()
	pairs := [][2]string{{"R", "A"}, {"A", "C"}, {"A", "D"}, {"C", "M"}, {"D", "M"}}
	for _, p := range pairs {
		if !Less(g.heights[ids[p[0]]], g.heights[ids[p[1]]]) {
			t.Errorf("expected height(%s) < height(%s), got %s >= %s", p[0], p[1], g.heights[ids[p[0]]], g.heights[ids[p[1]]])
		}
	}
}

func TestAncestorsIncludesSelfAndTransitiveParents(t *testing.T) {
	g, ids := buildFixture()
	anc, err := Ancestors(g, ids["C"])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"R", "A", "C"} {
		if _, ok := anc[ids[want]]; !ok {
			t.Errorf("expected %s in ancestors(C)", want)
		}
	}
	if _, ok := anc[ids["D"]]; ok {
		t.Errorf("D should not be an ancestor of C")
	}
}

func TestCommonMergeAncestorPicksNearestFork(t *testing.T) {
	g, ids := buildFixture()
	got, ok, err := CommonMergeAncestor(g, g, ids["C"], ids["D"])
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a common ancestor")
	}
	if got != ids["A"] {
		t.Errorf("expected A as the common merge ancestor, got %s", got)
	}
}

func TestCommonMergeAncestorDirectAncestor(t *testing.T) {
	g, ids := buildFixture()
	got, ok, err := CommonMergeAncestor(g, g, ids["M"], ids["D"])
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != ids["D"] {
		t.Errorf("expected D (a direct ancestor of M), got %s ok=%v", got, ok)
	}
}

func TestUncommonAncestors(t *testing.T) {
	g, ids := buildFixture()
	onlyC, onlyD, err := UncommonAncestors(g, g, ids["C"], ids["D"])
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := onlyC[ids["C"]]; !ok || len(onlyC) != 1 {
		t.Errorf("onlyC = %v, want just {C}", onlyC)
	}
	if _, ok := onlyD[ids["D"]]; !ok || len(onlyD) != 1 {
		t.Errorf("onlyD = %v, want just {D}", onlyD)
	}
}

func TestToposortOrdersAncestorsFirst(t *testing.T) {
	g, ids := buildFixture()
	subset := []identity.Identifier{ids["M"], ids["R"], ids["D"], ids["C"], ids["A"]}
	order, err := Toposort(g, subset)
	if err != nil {
		t.Fatal(err)
	}
	pos := map[identity.Identifier]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos[ids["R"]] > pos[ids["A"]] || pos[ids["A"]] > pos[ids["C"]] || pos[ids["C"]] > pos[ids["M"]] || pos[ids["D"]] > pos[ids["M"]] {
		t.Errorf("toposort violated ancestor-before-descendant ordering: %v", order)
	}
}

func TestEraseAncestorsKeepsOnlyHeads(t *testing.T) {
	g, ids := buildFixture()
	heads, err := EraseAncestors(g, []identity.Identifier{ids["R"], ids["A"], ids["C"], ids["D"]})
	if err != nil {
		t.Fatal(err)
	}
	want := map[identity.Identifier]bool{ids["C"]: true, ids["D"]: true}
	if len(heads) != 2 {
		t.Fatalf("heads = %v, want exactly C and D", heads)
	}
	for _, h := range heads {
		if !want[h] {
			t.Errorf("unexpected head %s", h)
		}
	}
}

func TestAncestryDifference(t *testing.T) {
	g, ids := buildFixture()
	diff, err := AncestryDifference(g, ids["C"], ids["D"])
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := diff[ids["C"]]; !ok || len(diff) != 1 {
		t.Errorf("AncestryDifference(C, D) = %v, want just {C}", diff)
	}
}
