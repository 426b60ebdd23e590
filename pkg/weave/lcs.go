package weave

// matchPair is one aligned index pair from the LCS of two line sequences.
type matchPair struct {
	oldIndex int
	newIndex int
}

// uniqueLineLCS computes a line-by-line LCS between oldLines and newLines
// using the "unique-line" strategy of §4.6: lines that occur exactly once in
// both sequences are aligned first (by taking the longest increasing
// subsequence of their cross-referenced positions, the textbook
// patience-sort diff trick), and the gaps between those anchor matches are
// then resolved by a plain bounded LCS, recursively narrowing until no gap
// remains to search. depth bounds the recursion so that pathological inputs
// (no unique lines anywhere) fall back to a single plain LCS pass rather
// than looping forever.
func uniqueLineLCS(oldLines, newLines []string, depth int) []matchPair {
	if len(oldLines) == 0 || len(newLines) == 0 {
		return nil
	}

	anchors := anchorMatches(oldLines, newLines)
	if len(anchors) == 0 || depth <= 0 {
		return plainLCS(oldLines, newLines)
	}

	var out []matchPair
	prevOld, prevNew := 0, 0
	for _, a := range anchors {
		gapOld := oldLines[prevOld:a.oldIndex]
		gapNew := newLines[prevNew:a.newIndex]
		for _, m := range uniqueLineLCS(gapOld, gapNew, depth-1) {
			out = append(out, matchPair{oldIndex: prevOld + m.oldIndex, newIndex: prevNew + m.newIndex})
		}
		out = append(out, a)
		prevOld, prevNew = a.oldIndex+1, a.newIndex+1
	}
	gapOld := oldLines[prevOld:]
	gapNew := newLines[prevNew:]
	for _, m := range uniqueLineLCS(gapOld, gapNew, depth-1) {
		out = append(out, matchPair{oldIndex: prevOld + m.oldIndex, newIndex: prevNew + m.newIndex})
	}
	return out
}

// anchorMatches finds lines that occur exactly once in each of oldLines and
// newLines, then keeps the longest run of those candidate pairs whose new
// indices are strictly increasing in old-index order (a longest increasing
// subsequence computed with simple patience-sort piles, adequate at the
// sizes this engine's weaves reach).
func anchorMatches(oldLines, newLines []string) []matchPair {
	oldCount := map[string]int{}
	for _, l := range oldLines {
		oldCount[l]++
	}
	newPos := map[string]int{}
	newCount := map[string]int{}
	for i, l := range newLines {
		newCount[l]++
		newPos[l] = i
	}

	var candidates []matchPair
	for i, l := range oldLines {
		if oldCount[l] == 1 && newCount[l] == 1 {
			candidates = append(candidates, matchPair{oldIndex: i, newIndex: newPos[l]})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Longest increasing subsequence of candidates by newIndex (candidates
	// are already sorted by oldIndex by construction).
	piles := []int{}         // piles[k] = index into candidates of the smallest tail for length k+1
	predecessor := make([]int, len(candidates))
	for i, c := range candidates {
		lo, hi := 0, len(piles)
		for lo < hi {
			mid := (lo + hi) / 2
			if candidates[piles[mid]].newIndex < c.newIndex {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			predecessor[i] = piles[lo-1]
		} else {
			predecessor[i] = -1
		}
		if lo == len(piles) {
			piles = append(piles, i)
		} else {
			piles[lo] = i
		}
	}
	if len(piles) == 0 {
		return nil
	}
	out := make([]matchPair, len(piles))
	k := piles[len(piles)-1]
	for i := len(piles) - 1; i >= 0; i-- {
		out[i] = candidates[k]
		k = predecessor[k]
	}
	return out
}

// plainLCS computes an exact longest-common-subsequence alignment with
// classic O(n*m) dynamic programming, used once unique anchors run out.
// Returned indices are relative to its own inputs; callers translate.
func plainLCS(oldLines, newLines []string) []matchPair {
	n, m := len(oldLines), len(newLines)
	if n == 0 || m == 0 {
		return nil
	}
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	var out []matchPair
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldLines[i] == newLines[j]:
			out = append(out, matchPair{oldIndex: i, newIndex: j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return out
}
