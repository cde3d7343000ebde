// Package review holds the suggestion state machine for a single document
// session and reconstructs edited text from accepted suggestions.
package review

import (
	"fmt"
	"strings"
)

// Category classifies the kind of improvement a suggestion proposes.
type Category string

const (
	CategoryGrammar Category = "grammar"
	CategoryClarity Category = "clarity"
	CategoryStyle   Category = "style"
	CategoryOther   Category = "other"
)

// ParseCategory validates a raw category value. An empty value maps to CategoryOther.
func ParseCategory(rawInput string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(rawInput))) {
	case CategoryGrammar:
		return CategoryGrammar, nil
	case CategoryClarity:
		return CategoryClarity, nil
	case CategoryStyle:
		return CategoryStyle, nil
	case CategoryOther, "":
		return CategoryOther, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, rawInput)
	}
}

// State is the lifecycle state of a suggestion. Every state can move to
// every other state.
type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
)

// ParseState validates a raw state value. An empty value maps to StatePending.
func ParseState(rawInput string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(rawInput))) {
	case StatePending, "":
		return StatePending, nil
	case StateAccepted:
		return StateAccepted, nil
	case StateRejected:
		return StateRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown state %q", ErrValidation, rawInput)
	}
}

// Range is a half-open [Start, End) interval of code point offsets into the
// original document content.
type Range struct {
	Start int
	End   int
}

// Len returns the number of code points covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Overlaps reports whether two ranges intersect.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Suggestion is a proposed replacement anchored to the original text.
// OriginalText is a snapshot of the original content at Range taken at
// ingestion and is never recomputed.
type Suggestion struct {
	ID              string
	DocumentID      string
	Range           Range
	OriginalText    string
	ReplacementText string
	Category        Category
	State           State
}

// Accepted reports whether the suggestion is currently accepted.
func (s Suggestion) Accepted() bool {
	return s.State == StateAccepted
}
