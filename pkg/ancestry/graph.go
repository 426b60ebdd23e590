package ancestry

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/logging"
)

// log is this package's sublogger of logging.RootLogger, whose level it
// takes when the package is initialized.
var log = logging.RootLogger.Sublogger("ancestry")

// ParentSource answers "what are this revision's parents", the minimal
// query every graph algorithm in this package needs. It corresponds to the
// revision store's get_revision_parents (§6).
type ParentSource interface {
	Parents(id identity.Identifier) ([]identity.Identifier, error)
}

// HeightSource answers "what is this revision's height" (§4.5), used to
// drive the uncommon-ancestors frontier and to pick the nearest common
// ancestor among several candidates.
type HeightSource interface {
	Height(id identity.Identifier) (Height, error)
}

// Ancestors returns the ancestor-or-self set of id: id itself and every
// revision reachable by repeatedly following parent edges. The walk is an
// explicit worklist, not recursion, per §4.5.
func Ancestors(parents ParentSource, id identity.Identifier) (map[identity.Identifier]struct{}, error) {
	visited := map[identity.Identifier]struct{}{id: {}}
	work := []identity.Identifier{id}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		ps, err := parents.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("ancestry: ancestors: parents of %s: %w", n, err)
		}
		for _, p := range ps {
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			work = append(work, p)
		}
	}
	return visited, nil
}

// Toposort orders subset so that every revision's ancestors in subset
// precede it (§4.5): repeatedly find the members of what's left with no
// ancestor inside the remaining set, emit them (sorted by raw
// identifier for a deterministic tie-break), and remove them, until
// nothing is left.
func Toposort(parents ParentSource, subset []identity.Identifier) ([]identity.Identifier, error) {
	remaining := make(map[identity.Identifier]struct{}, len(subset))
	for _, id := range subset {
		remaining[id] = struct{}{}
	}
	out := make([]identity.Identifier, 0, len(subset))
	for len(remaining) > 0 {
		var roots []identity.Identifier
		for id := range remaining {
			anc, err := Ancestors(parents, id)
			if err != nil {
				return nil, fmt.Errorf("ancestry: toposort: ancestors of %s: %w", id, err)
			}
			hasRemainingAncestor := false
			for a := range anc {
				if _, ok := remaining[a]; ok && a != id {
					hasRemainingAncestor = true
					break
				}
			}
			if !hasRemainingAncestor {
				roots = append(roots, id)
			}
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("ancestry: toposort: cycle detected among remaining %d revisions", len(remaining))
		}
		sort.Slice(roots, func(i, j int) bool { return identity.Less(roots[i], roots[j]) })
		for _, id := range roots {
			out = append(out, id)
			delete(remaining, id)
		}
	}
	return out, nil
}

// UncommonAncestors returns (ancestors(a)\ancestors(b), ancestors(b)\ancestors(a)).
// Rather than computing each side's full ancestor set independently (which
// degrades badly under the "convexity" pathology of §4.5, one side with a
// long history below the common ancestor and one with a short one), the two
// frontiers are expanded together from a single max-height-first priority
// queue: every node is visited exactly once, at the point where every path
// into it from a node of strictly greater height (its only possible
// predecessors in this walk, since height strictly increases from parent to
// child) has already been accounted for.
func UncommonAncestors(parents ParentSource, heights HeightSource, a, b identity.Identifier) (onlyA, onlyB map[identity.Identifier]struct{}, err error) {
	onlyA = map[identity.Identifier]struct{}{}
	onlyB = map[identity.Identifier]struct{}{}
	if a == b {
		return onlyA, onlyB, nil
	}

	const maskA, maskB = 1, 2
	pending := map[identity.Identifier]int{a: maskA, b: maskB}
	queued := map[identity.Identifier]bool{}
	pq := &heightHeap{}
	heap.Init(pq)

	push := func(id identity.Identifier) error {
		if queued[id] {
			return nil
		}
		queued[id] = true
		h, err := heights.Height(id)
		if err != nil {
			return fmt.Errorf("ancestry: uncommon_ancestors: height of %s: %w", id, err)
		}
		heap.Push(pq, heightItem{id: id, height: h})
		return nil
	}
	if err := push(a); err != nil {
		return nil, nil, err
	}
	if err := push(b); err != nil {
		return nil, nil, err
	}

	for pq.Len() > 0 {
		top := heap.Pop(pq).(heightItem)
		mask := pending[top.id]
		switch mask {
		case maskA:
			onlyA[top.id] = struct{}{}
		case maskB:
			onlyB[top.id] = struct{}{}
		}
		ps, err := parents.Parents(top.id)
		if err != nil {
			return nil, nil, fmt.Errorf("ancestry: uncommon_ancestors: parents of %s: %w", top.id, err)
		}
		for _, p := range ps {
			pending[p] |= mask
			if err := push(p); err != nil {
				return nil, nil, err
			}
		}
	}
	log.Tracef("uncommon_ancestors(%s, %s): %s only-left, %s only-right",
		logging.ShortID(a), logging.ShortID(b),
		humanize.Comma(int64(len(onlyA))), humanize.Comma(int64(len(onlyB))))
	return onlyA, onlyB, nil
}

// EraseAncestors filters ids down to its "heads": the subset that is not an
// ancestor of any other member, computed by union of ancestor bitsets
// (§4.5).
func EraseAncestors(parents ParentSource, ids []identity.Identifier) ([]identity.Identifier, error) {
	ancestorOfOther := map[identity.Identifier]struct{}{}
	for _, other := range ids {
		anc, err := Ancestors(parents, other)
		if err != nil {
			return nil, err
		}
		for _, candidate := range ids {
			if candidate == other {
				continue
			}
			if _, ok := anc[candidate]; ok {
				ancestorOfOther[candidate] = struct{}{}
			}
		}
	}
	out := make([]identity.Identifier, 0, len(ids))
	for _, id := range ids {
		if _, ok := ancestorOfOther[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// AncestryDifference returns ancestors(a)\ancestors(b), by union of ancestor
// bitsets (§4.5). Unlike UncommonAncestors this is one-directional and is
// not height-driven, since it has no symmetric convexity pathology to
// avoid.
func AncestryDifference(parents ParentSource, a, b identity.Identifier) (map[identity.Identifier]struct{}, error) {
	ancA, err := Ancestors(parents, a)
	if err != nil {
		return nil, err
	}
	ancB, err := Ancestors(parents, b)
	if err != nil {
		return nil, err
	}
	out := map[identity.Identifier]struct{}{}
	for id := range ancA {
		if _, ok := ancB[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// CommonMergeAncestor returns the nearest node that dominates one of left,
// right and is an ancestor of the other (§4.5): stronger than a plain least
// common ancestor because a dominator of, say, right is unavoidable on
// every path from right back through history, so picking it as the merge
// base can't silently re-propagate a change that every one of right's
// ancestors already saw (the "silent propagate elision" pathology a naive
// LCA is vulnerable to when history has been merged back and forth).
//
// If left is an ancestor of right (or vice versa) that node is returned
// directly. Otherwise the candidate set is every common ancestor that
// dominates left or dominates right (computed by forward dominance,
// restricted to each side's own ancestor-induced subgraph); among those,
// the one with the greatest height — nearest to left and right — wins. If
// no common ancestor dominates either side, the nearest plain common
// ancestor is returned as a fallback, with ok still true.
func CommonMergeAncestor(parents ParentSource, heights HeightSource, left, right identity.Identifier) (id identity.Identifier, ok bool, err error) {
	if left == right {
		return left, true, nil
	}
	ancLeft, err := Ancestors(parents, left)
	if err != nil {
		return id, false, err
	}
	ancRight, err := Ancestors(parents, right)
	if err != nil {
		return id, false, err
	}
	if _, isAncestor := ancRight[left]; isAncestor {
		return left, true, nil
	}
	if _, isAncestor := ancLeft[right]; isAncestor {
		return right, true, nil
	}

	common := map[identity.Identifier]struct{}{}
	for n := range ancLeft {
		if _, ok := ancRight[n]; ok {
			common[n] = struct{}{}
		}
	}
	if len(common) == 0 {
		return id, false, nil
	}

	domLeft, err := dominators(parents, heights, ancLeft, left)
	if err != nil {
		return id, false, err
	}
	domRight, err := dominators(parents, heights, ancRight, right)
	if err != nil {
		return id, false, err
	}

	pool := map[identity.Identifier]struct{}{}
	for n := range common {
		if _, ok := domLeft[n]; ok {
			pool[n] = struct{}{}
			continue
		}
		if _, ok := domRight[n]; ok {
			pool[n] = struct{}{}
		}
	}
	if len(pool) == 0 {
		pool = common
	}

	var best identity.Identifier
	var bestHeight Height
	first := true
	for n := range pool {
		h, err := heights.Height(n)
		if err != nil {
			return id, false, fmt.Errorf("ancestry: common_merge_ancestor: height of %s: %w", n, err)
		}
		if first || Less(bestHeight, h) {
			best, bestHeight, first = n, h, false
		}
	}
	log.Debugf("common_merge_ancestor(%s, %s) = %s (pool size %s)",
		logging.ShortID(left), logging.ShortID(right), logging.ShortID(best),
		humanize.Comma(int64(len(pool))))
	return best, true, nil
}

// dominators computes, for every node in subgraph (an ancestor-or-self set
// of target, including target), the set of nodes that dominate it: every
// node lying on every path from subgraph's own sources (the nodes in
// subgraph with no parent also in subgraph) down to it. Processing subgraph
// in ascending-height order visits every node's in-subgraph parents before
// the node itself, since height strictly increases from parent to child.
func dominators(parents ParentSource, heights HeightSource, subgraph map[identity.Identifier]struct{}, target identity.Identifier) (map[identity.Identifier]struct{}, error) {
	type withHeight struct {
		id identity.Identifier
		h  Height
	}
	ordered := make([]withHeight, 0, len(subgraph))
	for n := range subgraph {
		h, err := heights.Height(n)
		if err != nil {
			return nil, fmt.Errorf("ancestry: dominators: height of %s: %w", n, err)
		}
		ordered = append(ordered, withHeight{n, h})
	}
	sort.Slice(ordered, func(i, j int) bool { return Less(ordered[i].h, ordered[j].h) })

	dom := make(map[identity.Identifier]map[identity.Identifier]struct{}, len(ordered))
	for _, wh := range ordered {
		n := wh.id
		ps, err := parents.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("ancestry: dominators: parents of %s: %w", n, err)
		}
		var parentsInSet []identity.Identifier
		for _, p := range ps {
			if _, ok := subgraph[p]; ok {
				parentsInSet = append(parentsInSet, p)
			}
		}
		if len(parentsInSet) == 0 {
			dom[n] = map[identity.Identifier]struct{}{n: {}}
			continue
		}
		acc := map[identity.Identifier]struct{}{}
		for k := range dom[parentsInSet[0]] {
			acc[k] = struct{}{}
		}
		for _, p := range parentsInSet[1:] {
			for k := range acc {
				if _, ok := dom[p][k]; !ok {
					delete(acc, k)
				}
			}
		}
		acc[n] = struct{}{}
		dom[n] = acc
	}
	return dom[target], nil
}

// heightItem and heightHeap implement a max-heap (largest height first) of
// pending frontier nodes for UncommonAncestors.
type heightItem struct {
	id     identity.Identifier
	height Height
}

type heightHeap []heightItem

func (h heightHeap) Len() int            { return len(h) }
func (h heightHeap) Less(i, j int) bool  { return Less(h[j].height, h[i].height) }
func (h heightHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heightHeap) Push(x interface{}) { *h = append(*h, x.(heightItem)) }
func (h *heightHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
