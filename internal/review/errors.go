package review

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("review: invalid suggestion")
	// ErrRange matches every RangeError.
	ErrRange = errors.New("review: range out of bounds")
	// ErrNoOriginal indicates an operation that needs an original document ran on an empty store.
	ErrNoOriginal = errors.New("review: no original document")
)

// ValidationError reports a suggestion rejected at ingestion. The whole batch
// it belonged to is rejected with it.
type ValidationError struct {
	Index        int
	SuggestionID string
	Reason       string
}

func (e *ValidationError) Error() string {
	if e.SuggestionID == "" {
		return fmt.Sprintf("%s: suggestion %d: %s", ErrValidation, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: suggestion %d (%s): %s", ErrValidation, e.Index, e.SuggestionID, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RangeError reports a suggestion whose range does not fit the original text
// during reconstruction.
type RangeError struct {
	SuggestionID string
	Range        Range
	Length       int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: suggestion %s range %s exceeds original length %d", ErrRange, e.SuggestionID, e.Range, e.Length)
}

// Is lets errors.Is match ErrRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}
