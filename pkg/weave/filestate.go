package weave

import "github.com/dscherger/monotone-core/pkg/identity"

// Resolve computes the state at rev given a new vector of content lines
// (§4.6 resolve): the live lines of the receiver are aligned against
// newContentLines with uniqueLineLCS; lines present in newContentLines but
// not in the alignment are new lines born at rev, spliced into the shared
// weave between their flanking matched lines; lines present in the receiver
// but not in the alignment are marked not-live at rev. The weave is mutated
// in place (insert-only); the receiver's own States map is never mutated,
// only copied forward into the returned state.
func (fs *FileState) Resolve(newContentLines []string, rev identity.Identifier) *FileState {
	liveIDs := fs.CurrentIDs()
	liveContent := make([]string, len(liveIDs))
	for i, id := range liveIDs {
		liveContent[i] = fs.lineContent(id)
	}

	matches := uniqueLineLCS(liveContent, newContentLines, 24)

	next := make(map[LineID]LivingStatus, len(fs.States)+len(newContentLines))
	for id, st := range fs.States {
		next[id] = st
	}

	matchedOld := make(map[int]int, len(matches)) // liveIDs index -> newContentLines index
	matchedNew := make(map[int]int, len(matches))
	for _, m := range matches {
		matchedOld[m.oldIndex] = m.newIndex
		matchedNew[m.newIndex] = m.oldIndex
	}

	for i, id := range liveIDs {
		if _, ok := matchedOld[i]; !ok {
			next[id] = fs.States[id].SetLiving(rev, false)
		}
	}

	// after tracks the most recently placed line (matched or freshly
	// inserted), so a run of several new lines lands in order instead of
	// each splicing in at the same anchor.
	born := 0
	var after LineID
	afterPresent := false
	for newIdx := 0; newIdx < len(newContentLines); newIdx++ {
		if liveOldIdx, ok := matchedNew[newIdx]; ok {
			after = liveIDs[liveOldIdx]
			afterPresent = true
			continue
		}
		id := LineID{Birth: rev, Position: born}
		born++
		fs.Weave.Insert(after, afterPresent, []Line{{ID: id, Content: newContentLines[newIdx]}})
		next[id] = NewLivingStatus().SetLiving(rev, true)
		after = id
		afterPresent = true
	}

	return &FileState{Weave: fs.Weave, States: next}
}

func (fs *FileState) lineContent(id LineID) string {
	if i := fs.Weave.IndexOf(id); i >= 0 {
		return fs.Weave.At(i).Content
	}
	return ""
}

// Section is one run of the weave as classified by Conflict: either a clean
// stretch of lines live in the merge, or a conflicting stretch where left
// and right disagree and the merge cannot pick a side automatically.
type Section struct {
	Conflict bool
	Left     []string
	Right    []string // populated only when Conflict is true
}

// Conflict walks the shared weave in order and classifies runs of
// disagreement between left and right the way file_state::conflict does
// (original_source/pcdv.cc): a line where left and right both have an
// opinion and disagree on it does not, by itself, make a conflict — it only
// does if, within the same run of disagreement, the merge sides with left
// on at least one such line and with right on at least one other. A run
// where the merge consistently sides with the same branch throughout is a
// clean (if one-sided) resolution, not a conflict; only a run where both
// mustleft and mustright get set is reported as a genuine two-sided
// conflict. Runs are split at a transition into or out of disagreement
// (rather than at every fully-agreed line, as the original does) so that
// adjacent agreed lines are consolidated into a single section.
func (fs *FileState) Conflict(other *FileState) []Section {
	mashed := fs.Mash(other)

	var sections []Section
	var cleanRun, leftRun, rightRun []string
	var mustLeft, mustRight bool
	inDisagreement := false

	flush := func() {
		switch {
		case mustLeft && mustRight:
			if len(leftRun) > 0 || len(rightRun) > 0 {
				sections = append(sections, Section{Conflict: true, Left: leftRun, Right: rightRun})
			}
		case len(cleanRun) > 0:
			sections = append(sections, Section{Left: cleanRun})
		}
		cleanRun, leftRun, rightRun = nil, nil, nil
		mustLeft, mustRight = false, false
	}

	for _, line := range fs.Weave.Lines() {
		leftSt, hasLeft := fs.States[line.ID]
		rightSt, hasRight := other.States[line.ID]
		liveLeft := hasLeft && leftSt.IsLiving()
		liveRight := hasRight && rightSt.IsLiving()
		mergedSt, hasMerged := mashed.States[line.ID]
		liveMerged := hasMerged && mergedSt.IsLiving()

		disagree := liveLeft != liveRight
		if disagree != inDisagreement {
			flush()
			inDisagreement = disagree
		}

		if disagree {
			if liveLeft == liveMerged {
				mustLeft = true
			} else {
				mustRight = true
			}
			if liveLeft {
				leftRun = append(leftRun, line.Content)
			}
			if liveRight {
				rightRun = append(rightRun, line.Content)
			}
		}
		if liveMerged {
			cleanRun = append(cleanRun, line.Content)
		}
	}
	flush()
	return sections
}
