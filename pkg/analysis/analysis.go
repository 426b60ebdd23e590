package analysis

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// TID is a transient identifier for one entity within one path-analysis
// (§3's glossary entry for "tid"). It never escapes the analysis that
// produced it.
type TID uint64

// RootTID is the reserved root identifier; it is never allocated by Analyze
// and never appears as a key of a PathState.
const RootTID TID = 0

// Entry is one path-state record: the parent tid, the entity kind, and the
// name under that parent. Name is vpath.NullComponent when the entity is
// not present on this side of the analysis.
type Entry struct {
	Parent TID
	Kind   EntryKind
	Name   string
}

func (e Entry) present() bool { return !vpath.IsNullComponent(e.Name) }

// PathState maps every tid known to an analysis to its entry on one side.
type PathState map[TID]Entry

// Analysis is a pair of path-states (§3): the pre-state and the post-state
// of one rearrangement, expressed over a shared tid space.
type Analysis struct {
	Pre  PathState
	Post PathState
}

// builder accumulates state while Analyze constructs an Analysis.
type builder struct {
	next TID
	pre  PathState
	post PathState

	// preByPath / postByPath record, for entities explicitly named by the
	// rearrangement (deletes, rename sources on the pre side; adds, rename
	// destinations on the post side), the tid allocated for them, keyed by
	// their full path on that side. ancestorTID consults these first so
	// that an ancestor directory that is itself a rename source/destination
	// resolves to the tid already allocated for it, rather than a fresh
	// "unchanged" ancestor tid.
	preByPath  map[string]TID
	postByPath map[string]TID

	// unchanged records directories whose path is identical on both sides
	// (i.e. not themselves a rename source or destination), keyed by that
	// single shared path.
	unchanged map[string]TID
}

func newBuilder() *builder {
	return &builder{
		next:       1,
		pre:        make(PathState),
		post:       make(PathState),
		preByPath:  make(map[string]TID),
		postByPath: make(map[string]TID),
		unchanged:  make(map[string]TID),
	}
}

func (b *builder) alloc() TID {
	t := b.next
	b.next++
	return t
}

// ancestorTID resolves the tid for a directory path as it exists on one
// side, allocating "unchanged" intermediate entries on demand (§4.3 step 5).
// It is step 2/3/5 combined: explicit entities registered via preByPath or
// postByPath take priority, since an ancestor directory may itself be a
// rename source or destination elsewhere in the same rearrangement.
func (b *builder) ancestorTID(isPre bool, path string) TID {
	if path == "" {
		return RootTID
	}
	byPath := b.postByPath
	if isPre {
		byPath = b.preByPath
	}
	if t, ok := byPath[path]; ok {
		return t
	}
	if t, ok := b.unchanged[path]; ok {
		return t
	}
	parent := b.ancestorTID(isPre, vpath.Dir(path))
	t := b.alloc()
	name := vpath.Base(path)
	entry := Entry{Parent: parent, Kind: KindDirectory, Name: name}
	b.pre[t] = entry
	b.post[t] = entry
	b.unchanged[path] = t
	return t
}

// Analyze converts a rearrangement to a path-analysis (§4.3 operation
// "analyze"). It performs steps 2-5 directly during construction (ancestor
// directories are resolved consistently via ancestorTID rather than in a
// separate completion pass) and then runs step 6 (collapse of structurally
// identical duplicate tids) and step 7 (sanity check) explicitly.
func Analyze(r *Rearrangement) (*Analysis, error) {
	b := newBuilder()

	// Step 2: deleted files and directories. Each gets a fresh tid with its
	// real pre-side entry; the post side is a null-name placeholder.
	for _, p := range sortedKeys(r.DeletedFiles) {
		if err := b.addDeleted(p, KindFile); err != nil {
			return nil, err
		}
	}
	for _, p := range sortedKeys(r.DeletedDirs) {
		if err := b.addDeleted(p, KindDirectory); err != nil {
			return nil, err
		}
	}

	// Step 3: added files. Symmetric to deletes: null-name placeholder on
	// the pre side, real entry on the post side.
	for _, p := range sortedKeys(r.AddedFiles) {
		if err := b.addAdded(p, KindFile); err != nil {
			return nil, err
		}
	}

	// Step 4: renames. One tid serves both the source entry (pre side) and
	// the destination entry (post side); this is the "renumbering mapping
	// post_tid -> pre_tid" the spec describes, applied directly rather than
	// as a separate renumbering pass.
	for _, src := range sortedMapKeys(r.RenamedFiles) {
		if err := b.addRenamed(src, r.RenamedFiles[src], KindFile); err != nil {
			return nil, err
		}
	}
	for _, src := range sortedMapKeys(r.RenamedDirs) {
		if err := b.addRenamed(src, r.RenamedDirs[src], KindDirectory); err != nil {
			return nil, err
		}
	}

	a := &Analysis{Pre: b.pre, Post: b.post}

	// Step 6: collapse any tids left structurally identical by construction
	// (a safety net; the ancestorTID indexing above avoids creating
	// duplicates in the common case).
	collapseIdentical(a)

	if err := EnsureValid(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (b *builder) addDeleted(path string, kind EntryKind) error {
	if path == "" {
		return fmt.Errorf("analysis: delete of root: %w", vcserr.ErrInvariantViolation)
	}
	parent := b.ancestorTID(true, vpath.Dir(path))
	t := b.alloc()
	b.pre[t] = Entry{Parent: parent, Kind: kind, Name: vpath.Base(path)}
	b.post[t] = Entry{Parent: RootTID, Kind: kind, Name: vpath.NullComponent}
	b.preByPath[path] = t
	return nil
}

func (b *builder) addAdded(path string, kind EntryKind) error {
	if path == "" {
		return fmt.Errorf("analysis: add of root: %w", vcserr.ErrInvariantViolation)
	}
	parent := b.ancestorTID(false, vpath.Dir(path))
	t := b.alloc()
	b.pre[t] = Entry{Parent: RootTID, Kind: kind, Name: vpath.NullComponent}
	b.post[t] = Entry{Parent: parent, Kind: kind, Name: vpath.Base(path)}
	b.postByPath[path] = t
	return nil
}

func (b *builder) addRenamed(src, dst string, kind EntryKind) error {
	if src == "" || dst == "" {
		return fmt.Errorf("analysis: rename of root: %w", vcserr.ErrInvariantViolation)
	}
	preParent := b.ancestorTID(true, vpath.Dir(src))
	postParent := b.ancestorTID(false, vpath.Dir(dst))
	t := b.alloc()
	b.pre[t] = Entry{Parent: preParent, Kind: kind, Name: vpath.Base(src)}
	b.post[t] = Entry{Parent: postParent, Kind: kind, Name: vpath.Base(dst)}
	b.preByPath[src] = t
	b.postByPath[dst] = t
	return nil
}

// collapseIdentical merges any two distinct tids whose pre and post entries
// are pairwise identical after remapping, in ascending-tid order so the
// result is deterministic regardless of input map iteration order.
func collapseIdentical(a *Analysis) {
	remap := make(map[TID]TID)
	canon := func(t TID) TID {
		for {
			if r, ok := remap[t]; ok {
				t = r
				continue
			}
			return t
		}
	}
	type key struct {
		pre, post Entry
	}
	seen := make(map[key]TID)
	ids := make([]TID, 0, len(a.Pre))
	for t := range a.Pre {
		ids = append(ids, t)
	}
	// Deterministic ascending order.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	for _, t := range ids {
		pe, post := a.Pre[t], a.Post[t]
		k := key{pre: Entry{Parent: canon(pe.Parent), Kind: pe.Kind, Name: pe.Name}, post: Entry{Parent: canon(post.Parent), Kind: post.Kind, Name: post.Name}}
		if existing, ok := seen[k]; ok {
			remap[t] = existing
			delete(a.Pre, t)
			delete(a.Post, t)
			continue
		}
		seen[k] = t
	}
	if len(remap) == 0 {
		return
	}
	for t, e := range a.Pre {
		e.Parent = canon(e.Parent)
		a.Pre[t] = e
	}
	for t, e := range a.Post {
		e.Parent = canon(e.Parent)
		a.Post[t] = e
	}
}

// EnsureValid runs the step-7 sanity check: both path-states must be proper
// trees with no cycles, siblings must have unique non-null names, and the
// two halves must share the same tid set with matching kinds (§4.3 "Errors").
func EnsureValid(a *Analysis) error {
	if len(a.Pre) != len(a.Post) {
		return fmt.Errorf("analysis: pre/post tid sets differ in size: %w", vcserr.ErrInvariantViolation)
	}
	for t, pre := range a.Pre {
		post, ok := a.Post[t]
		if !ok {
			return fmt.Errorf("analysis: tid %d missing from post state: %w", t, vcserr.ErrInvariantViolation)
		}
		if pre.Kind != post.Kind {
			return fmt.Errorf("analysis: tid %d changes kind %s -> %s: %w", t, pre.Kind, post.Kind, vcserr.ErrTypeMismatch)
		}
	}
	if err := checkTree(a.Pre); err != nil {
		return err
	}
	if err := checkTree(a.Post); err != nil {
		return err
	}
	return nil
}

func checkTree(ps PathState) error {
	// Cycle detection: for every tid, walk parents; if we revisit a tid
	// already on the current walk, or exceed the number of known tids, a
	// cycle exists.
	limit := len(ps) + 1
	for start := range ps {
		t := start
		steps := 0
		for t != RootTID {
			e, ok := ps[t]
			if !ok {
				break
			}
			steps++
			if steps > limit {
				return fmt.Errorf("analysis: cycle detected at tid %d: %w", start, vcserr.ErrStructuralCycle)
			}
			t = e.Parent
		}
	}
	// Sibling uniqueness: within each parent, non-null names must be
	// distinct.
	type sibling struct {
		parent TID
		name   string
	}
	seen := make(map[sibling]TID)
	for t, e := range ps {
		if !e.present() {
			continue
		}
		k := sibling{parent: e.Parent, name: e.Name}
		if other, ok := seen[k]; ok && other != t {
			return fmt.Errorf("analysis: duplicate name %q under tid %d: %w", e.Name, e.Parent, vcserr.ErrNameCollision)
		}
		seen[k] = t
	}
	return nil
}

// Compose reverses Analyze: it emits the minimal rearrangement an analysis
// represents (§4.3 operation "compose"), skipping tids whose pre and post
// paths coincide and classifying the rest as add, delete, or rename by
// inspecting which side carries the null name.
func Compose(a *Analysis) (*Rearrangement, error) {
	r := NewRearrangement()
	for t, pre := range a.Pre {
		if t == RootTID {
			continue
		}
		post := a.Post[t]
		if pre.Parent == post.Parent && pre.Name == post.Name {
			continue // unchanged, including implicit ancestor scaffolding
		}
		prePresent, postPresent := pre.present(), post.present()
		switch {
		case !prePresent && postPresent:
			if pre.Kind != KindFile {
				// Implicit intermediate directory created to house an add
				// or rename destination: not itself an operation.
				continue
			}
			path, err := pathOf(a.Post, t)
			if err != nil {
				return nil, err
			}
			r.AddedFiles[path] = struct{}{}
		case prePresent && !postPresent:
			path, err := pathOf(a.Pre, t)
			if err != nil {
				return nil, err
			}
			if pre.Kind == KindFile {
				r.DeletedFiles[path] = struct{}{}
			} else {
				r.DeletedDirs[path] = struct{}{}
			}
		case prePresent && postPresent:
			srcPath, err := pathOf(a.Pre, t)
			if err != nil {
				return nil, err
			}
			dstPath, err := pathOf(a.Post, t)
			if err != nil {
				return nil, err
			}
			if pre.Kind == KindFile {
				r.RenamedFiles[srcPath] = dstPath
			} else {
				r.RenamedDirs[srcPath] = dstPath
			}
		}
	}
	return r, nil
}

// Path reconstructs the full path of tid t on one side by walking parents to
// the root. It is exported so that callers outside this package (notably
// changeset.Invert) can map a tid back to a path without reimplementing the
// walk.
func Path(ps PathState, t TID) (string, error) {
	return pathOf(ps, t)
}

// pathOf reconstructs the full path of tid t on one side by walking parents
// to the root.
func pathOf(ps PathState, t TID) (string, error) {
	var components []string
	limit := len(ps) + 1
	for t != RootTID {
		e, ok := ps[t]
		if !ok {
			return "", fmt.Errorf("analysis: dangling tid %d: %w", t, vcserr.ErrInvariantViolation)
		}
		if !e.present() {
			return "", fmt.Errorf("analysis: path requested through absent tid %d: %w", t, vcserr.ErrInvariantViolation)
		}
		components = append([]string{e.Name}, components...)
		if len(components) > limit {
			return "", fmt.Errorf("analysis: cycle while reconstructing path: %w", vcserr.ErrStructuralCycle)
		}
		t = e.Parent
	}
	return vpath.ComposePath(components)
}

// ReconstructPath maps a path given on one side of the analysis to its
// image on the other, walking components through the shared tids (§4.3
// operation "reconstruct_path"). Where the chain is broken by an add or
// delete, it truncates at the nearest ancestor present on the target side
// and copies the residual components verbatim.
func ReconstructPath(a *Analysis, path string, fromPre bool) (string, error) {
	from, to := a.Pre, a.Post
	if !fromPre {
		from, to = a.Post, a.Pre
	}
	components, err := vpath.SplitPath(path)
	if err != nil {
		return "", err
	}

	// Resolve as much of the tid chain for path as the source side models;
	// most of a real tree is untouched by any one rearrangement and so has
	// no tid at all; a resolution miss simply means everything from that
	// point on is copied verbatim as a residual component below.
	chain := []TID{RootTID}
	cur := RootTID
	for _, c := range components {
		next := RootTID
		found := false
		for t, e := range from {
			if e.Parent == cur && e.present() && e.Name == c {
				next = t
				found = true
				break
			}
		}
		if !found {
			break
		}
		chain = append(chain, next)
		cur = next
	}

	// Walk the chain from the leaf upward until we find a tid present on
	// the target side; everything below that anchor is copied verbatim as
	// the residual components the spec describes.
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		if t == RootTID {
			return vpath.ComposePath(components[i:])
		}
		e, ok := to[t]
		if !ok || !e.present() {
			continue
		}
		anchorComponents, err := splitTID(to, t)
		if err != nil {
			return "", err
		}
		return vpath.ComposePath(append(anchorComponents, components[i:]...))
	}
	return vpath.ComposePath(components)
}

// Offset returns a copy of a with every non-root tid shifted up by delta,
// used by changeset.Concatenate to put two analyses into disjoint tid
// ranges before gluing them (§4.2 concatenation step 1).
func Offset(a *Analysis, delta TID) *Analysis {
	shift := func(t TID) TID {
		if t == RootTID {
			return RootTID
		}
		return t + delta
	}
	out := &Analysis{Pre: make(PathState, len(a.Pre)), Post: make(PathState, len(a.Post))}
	for t, e := range a.Pre {
		out.Pre[shift(t)] = Entry{Parent: shift(e.Parent), Kind: e.Kind, Name: e.Name}
	}
	for t, e := range a.Post {
		out.Post[shift(t)] = Entry{Parent: shift(e.Parent), Kind: e.Kind, Name: e.Name}
	}
	return out
}

// PathIndex returns every path present on one side of an analysis, mapped
// to the tid that names it, used by changeset.Concatenate to find
// unification candidates between A's post-state and B's pre-state.
func PathIndex(a *Analysis, pre bool) (map[string]TID, error) {
	ps := a.Post
	if pre {
		ps = a.Pre
	}
	out := make(map[string]TID, len(ps))
	for t, e := range ps {
		if t == RootTID || !e.present() {
			continue
		}
		p, err := pathOf(ps, t)
		if err != nil {
			return nil, err
		}
		out[p] = t
	}
	return out, nil
}

// Paths returns every path present on one side of an analysis, mapped to
// its entry kind. Used by changeset's full sanity check (§3 invariants 5-6)
// to reason about the post-state tree shape and the pre-state "killed" set
// without exposing PathState's tid indexing to callers outside this
// package.
func Paths(a *Analysis, pre bool) (map[string]EntryKind, error) {
	ps := a.Post
	if pre {
		ps = a.Pre
	}
	out := make(map[string]EntryKind, len(ps))
	for t, e := range ps {
		if t == RootTID || !e.present() {
			continue
		}
		p, err := pathOf(ps, t)
		if err != nil {
			return nil, err
		}
		out[p] = e.Kind
	}
	return out, nil
}

// Killed returns the set of paths present in the pre-state but absent from
// the post-state: the paths the rearrangement removes, whether directly
// deleted or vacated by a rename (§4.2 step 2's "killed set").
func Killed(a *Analysis) (map[string]struct{}, error) {
	pre, err := Paths(a, true)
	if err != nil {
		return nil, err
	}
	post, err := Paths(a, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for p := range pre {
		if _, ok := post[p]; !ok {
			out[p] = struct{}{}
		}
	}
	return out, nil
}

// splitTID returns the path of tid t on side ps as its component sequence.
func splitTID(ps PathState, t TID) ([]string, error) {
	full, err := pathOf(ps, t)
	if err != nil {
		return nil, err
	}
	return vpath.SplitPath(full)
}
