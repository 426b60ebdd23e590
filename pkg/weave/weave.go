package weave

import "github.com/dscherger/monotone-core/pkg/identity"

// LineID identifies a single line across every revision of a file: the
// revision it was born in, plus its position among the lines born in that
// same revision (§4.6: "line identity is independent of content"). Two
// textually identical lines born in different revisions are distinct
// LineIDs.
type LineID struct {
	Birth    identity.Identifier
	Position int
}

// Line is one entry of the shared weave: its stable identity plus its
// immutable content.
type Line struct {
	ID      LineID
	Content string
}

// Weave is the append-only, order-preserving sequence of lines shared by
// every FileState descended from the same root (§5: "the PCDV file weave
// holds a shared underlying sequence of weave lines; multiple file-states
// point into the same weave"). Mutation is limited to Insert, which splices
// new lines in without ever renumbering or removing an existing one, so
// that FileStates holding older references remain valid.
type Weave struct {
	lines []Line
	index map[LineID]int
}

// NewWeave returns an empty weave.
func NewWeave() *Weave {
	return &Weave{index: make(map[LineID]int)}
}

// Len returns the number of lines ever inserted into the weave.
func (w *Weave) Len() int { return len(w.lines) }

// Lines returns the weave's lines in order. The returned slice must not be
// mutated by the caller.
func (w *Weave) Lines() []Line { return w.lines }

// At returns the line at weave-order position i.
func (w *Weave) At(i int) Line { return w.lines[i] }

// IndexOf returns the weave-order position of id, or -1 if it has never been
// inserted.
func (w *Weave) IndexOf(id LineID) int {
	if i, ok := w.index[id]; ok {
		return i
	}
	return -1
}

// Insert splices newLines into the weave immediately after the line
// identified by after (or at the very front if afterPresent is false),
// preserving order and never disturbing the position of lines that precede
// after. Insert is the weave's only mutator (resolve, §4.6).
func (w *Weave) Insert(after LineID, afterPresent bool, newLines []Line) {
	at := 0
	if afterPresent {
		at = w.IndexOf(after) + 1
	}
	w.lines = append(w.lines[:at], append(append([]Line{}, newLines...), w.lines[at:]...)...)
	for i := at; i < len(w.lines); i++ {
		w.index[w.lines[i].ID] = i
	}
}

// FileState is a per-revision view into a shared weave (§3, §4.6): the
// weave itself plus a living-status per line it knows about. Two
// file-states sharing a weave may be Mashed (each line's two statuses
// combined with LivingStatus.Merge, as the conflict walk does), and a new
// child revision may be resolved from a vector of string lines.
type FileState struct {
	Weave  *Weave
	States map[LineID]LivingStatus
}

// NewFileState builds the root file-state: every line of initial is born
// live at rev in a fresh weave.
func NewFileState(initial []string, rev identity.Identifier) *FileState {
	w := NewWeave()
	states := make(map[LineID]LivingStatus, len(initial))
	lines := make([]Line, len(initial))
	for i, content := range initial {
		id := LineID{Birth: rev, Position: i}
		lines[i] = Line{ID: id, Content: content}
		states[id] = NewLivingStatus().SetLiving(rev, true)
	}
	w.Insert(LineID{}, false, lines)
	return &FileState{Weave: w, States: states}
}

// Current returns the content of every line that is live in this state, in
// weave order.
func (fs *FileState) Current() []string {
	out := make([]string, 0, fs.Weave.Len())
	for _, line := range fs.Weave.Lines() {
		st, ok := fs.States[line.ID]
		if !ok {
			continue
		}
		if st.IsLiving() {
			out = append(out, line.Content)
		}
	}
	return out
}

// CurrentIDs returns the LineIDs live in this state, in weave order;
// Resolve uses this instead of Current because it needs each live line's
// identity as well as its content.
func (fs *FileState) CurrentIDs() []LineID {
	out := make([]LineID, 0, fs.Weave.Len())
	for _, line := range fs.Weave.Lines() {
		if st, ok := fs.States[line.ID]; ok && st.IsLiving() {
			out = append(out, line.ID)
		}
	}
	return out
}

// Mash combines two file-states sharing the same weave: for every line
// known to either, the combined living-status is the Merge (§4.6's "union")
// of the two (a line known to only one side is copied unchanged).
func (fs *FileState) Mash(other *FileState) *FileState {
	out := make(map[LineID]LivingStatus, len(fs.States)+len(other.States))
	for id, st := range fs.States {
		out[id] = st
	}
	for id, st := range other.States {
		if existing, ok := out[id]; ok {
			out[id] = existing.Merge(st)
		} else {
			out[id] = st
		}
	}
	return &FileState{Weave: fs.Weave, States: out}
}
