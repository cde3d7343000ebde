package textdiff

import "slices"

type step struct {
	kind   Kind
	indexA int
	indexB int
}

// editScript returns a shortest edit script from a to b using Myers' greedy
// algorithm. A shortest script keeps the longest common subsequence, so a
// token shared by both sides in the same relative order is reported
// unchanged rather than removed and inserted.
//
// The trace grows with the square of the edit distance. When the distance
// exceeds maxEdits (if positive) editScript gives up and reports false.
func editScript(a, b []string, maxEdits int) ([]step, bool) {
	n, m := len(a), len(b)
	maxSteps := n + m
	if maxSteps == 0 {
		return nil, true
	}
	limit := maxSteps
	if maxEdits > 0 && maxEdits < limit {
		limit = maxEdits
	}
	offset := maxSteps + 1
	frontier := make([]int, 2*maxSteps+3)
	// trace[d] holds frontier[-d-1 .. d+1] as it was before round d.
	var trace [][]int

	for d := 0; d <= limit; d++ {
		trace = append(trace, slices.Clone(frontier[offset-d-1:offset+d+2]))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && frontier[offset+k-1] < frontier[offset+k+1]) {
				x = frontier[offset+k+1]
			} else {
				x = frontier[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			frontier[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m), true
			}
		}
	}
	return nil, false
}

func backtrack(trace [][]int, n, m int) []step {
	var steps []step
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		window := trace[d]
		at := func(k int) int { return window[k+d+1] }

		k := x - y
		var previousK int
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			previousK = k + 1
		} else {
			previousK = k - 1
		}
		previousX := at(previousK)
		previousY := previousX - previousK

		for x > previousX && y > previousY {
			x--
			y--
			steps = append(steps, step{kind: KindUnchanged, indexA: x, indexB: y})
		}
		if d > 0 {
			if x == previousX {
				steps = append(steps, step{kind: KindInserted, indexA: x, indexB: previousY})
			} else {
				steps = append(steps, step{kind: KindRemoved, indexA: previousX, indexB: y})
			}
		}
		x, y = previousX, previousY
	}
	slices.Reverse(steps)
	return steps
}
