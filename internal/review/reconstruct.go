package review

import (
	"cmp"
	"slices"
)

// Overlap pairs two accepted suggestions whose ranges intersect. First
// starts at or before Second.
type Overlap struct {
	First  Suggestion
	Second Suggestion
}

type positioned struct {
	ordinal    int
	suggestion Suggestion
}

// Reconstruct applies every accepted suggestion to original and returns the
// edited text. Splices run from the highest start offset to the lowest, so
// each splice leaves the text before its start untouched and the remaining
// original offsets stay valid. Overlapping accepted suggestions are applied
// with the same rule and never cause an error; see FindOverlaps.
//
// A *RangeError is returned only when an accepted suggestion does not fit
// the original text.
func Reconstruct(original string, suggestions []Suggestion) (string, error) {
	accepted := acceptedInOrder(suggestions)
	if len(accepted) == 0 {
		return original, nil
	}

	content := []rune(original)
	length := len(content)
	for _, entry := range accepted {
		r := entry.suggestion.Range
		if r.Start < 0 || r.Start > r.End || r.End > length {
			return "", &RangeError{SuggestionID: entry.suggestion.ID, Range: r, Length: length}
		}
	}

	slices.SortStableFunc(accepted, func(a, b positioned) int {
		if byStart := cmp.Compare(b.suggestion.Range.Start, a.suggestion.Range.Start); byStart != 0 {
			return byStart
		}
		if byEnd := cmp.Compare(b.suggestion.Range.End, a.suggestion.Range.End); byEnd != 0 {
			return byEnd
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	})

	for _, entry := range accepted {
		content = splice(content, entry.suggestion.Range, []rune(entry.suggestion.ReplacementText))
	}
	return string(content), nil
}

// FindOverlaps returns every pair of accepted suggestions whose ranges
// intersect, ordered by position. Reconstruction does not consult it.
func FindOverlaps(suggestions []Suggestion) []Overlap {
	accepted := acceptedInOrder(suggestions)
	slices.SortStableFunc(accepted, func(a, b positioned) int {
		if byStart := cmp.Compare(a.suggestion.Range.Start, b.suggestion.Range.Start); byStart != 0 {
			return byStart
		}
		if byEnd := cmp.Compare(a.suggestion.Range.End, b.suggestion.Range.End); byEnd != 0 {
			return byEnd
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	})

	var overlaps []Overlap
	for i, first := range accepted {
		for _, second := range accepted[i+1:] {
			if second.suggestion.Range.Start >= first.suggestion.Range.End {
				break
			}
			if first.suggestion.Range.Overlaps(second.suggestion.Range) {
				overlaps = append(overlaps, Overlap{First: first.suggestion, Second: second.suggestion})
			}
		}
	}
	return overlaps
}

func acceptedInOrder(suggestions []Suggestion) []positioned {
	var accepted []positioned
	for ordinal, suggestion := range suggestions {
		if suggestion.State == StateAccepted {
			accepted = append(accepted, positioned{ordinal: ordinal, suggestion: suggestion})
		}
	}
	return accepted
}

// splice replaces content[r.Start:r.End] with replacement. Bounds are clamped
// to the working buffer, which an earlier overlapping splice may have shortened.
func splice(content []rune, r Range, replacement []rune) []rune {
	start := min(r.Start, len(content))
	end := max(start, min(r.End, len(content)))
	result := make([]rune, 0, start+len(replacement)+len(content)-end)
	result = append(result, content[:start]...)
	result = append(result, replacement...)
	return append(result, content[end:]...)
}
