package review

import (
	"fmt"
	"math"
	"strings"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
)

// TransitionResult reports the outcome of a single state transition. An
// unknown id yields Found == false and leaves the store untouched.
type TransitionResult struct {
	ID       string
	Found    bool
	Previous State
	Current  State
}

// Changed reports whether the transition modified the suggestion.
func (result TransitionResult) Changed() bool {
	return result.Found && result.Previous != result.Current
}

// Progress counts suggestions per state.
type Progress struct {
	Total    int
	Pending  int
	Accepted int
	Rejected int
}

// Reviewed returns the number of suggestions that left the pending state.
func (progress Progress) Reviewed() int {
	return progress.Accepted + progress.Rejected
}

// PercentReviewed returns the rounded share of reviewed suggestions.
func (progress Progress) PercentReviewed() int {
	if progress.Total == 0 {
		return 0
	}
	return int(math.Round(float64(progress.Reviewed()) * 100 / float64(progress.Total)))
}

// Store is the authoritative state of one document session: the original
// document, its suggestions in insertion order, and the last materialized
// reconstruction. A Store is owned by a single session and is not safe for
// concurrent use.
type Store struct {
	original    documents.Document
	suggestions []Suggestion
	index       map[string]int
	edited      string
	hasEdited   bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: map[string]int{}}
}

// SetOriginal replaces the original document and discards every suggestion
// and derived edit that belonged to the previous one.
func (store *Store) SetOriginal(document documents.Document) {
	store.Reset()
	store.original = document
}

// SetSuggestions replaces the suggestion set wholesale. When any suggestion
// is invalid for the current original the store keeps its previous state and
// a *ValidationError is returned.
func (store *Store) SetSuggestions(suggestions []Suggestion) error {
	if store.original.IsZero() {
		return &ValidationError{Index: -1, Reason: ErrNoOriginal.Error()}
	}
	normalized, index, err := prepareSuggestions(store.original, suggestions)
	if err != nil {
		return err
	}
	store.suggestions = normalized
	store.index = index
	store.clearEdited()
	return nil
}

// Load sets the original document and its suggestions in one step. Nothing
// changes when the suggestions are invalid.
func (store *Store) Load(document documents.Document, suggestions []Suggestion) error {
	if document.IsZero() {
		return &ValidationError{Index: -1, Reason: ErrNoOriginal.Error()}
	}
	normalized, index, err := prepareSuggestions(document, suggestions)
	if err != nil {
		return err
	}
	store.Reset()
	store.original = document
	store.suggestions = normalized
	store.index = index
	return nil
}

// Accept marks the suggestion accepted.
func (store *Store) Accept(id string) TransitionResult {
	return store.transition(id, StateAccepted)
}

// Reject marks the suggestion rejected.
func (store *Store) Reject(id string) TransitionResult {
	return store.transition(id, StateRejected)
}

// Undo returns the suggestion to pending from any state.
func (store *Store) Undo(id string) TransitionResult {
	return store.transition(id, StatePending)
}

// AcceptAll accepts every pending suggestion and returns the affected ids.
func (store *Store) AcceptAll() []string {
	return store.resolvePending(StateAccepted)
}

// RejectAll rejects every pending suggestion and returns the affected ids.
func (store *Store) RejectAll() []string {
	return store.resolvePending(StateRejected)
}

// Reset returns the store to its initial empty state.
func (store *Store) Reset() {
	store.original = documents.Document{}
	store.suggestions = nil
	store.index = map[string]int{}
	store.clearEdited()
}

// Original returns the original document, if one is loaded.
func (store *Store) Original() (documents.Document, bool) {
	return store.original, !store.original.IsZero()
}

// Suggestions returns a copy of the suggestions in insertion order.
func (store *Store) Suggestions() []Suggestion {
	if len(store.suggestions) == 0 {
		return nil
	}
	copied := make([]Suggestion, len(store.suggestions))
	copy(copied, store.suggestions)
	return copied
}

// Suggestion looks up a suggestion by id.
func (store *Store) Suggestion(id string) (Suggestion, bool) {
	position, ok := store.index[id]
	if !ok {
		return Suggestion{}, false
	}
	return store.suggestions[position], true
}

// Progress counts the suggestions per state.
func (store *Store) Progress() Progress {
	progress := Progress{Total: len(store.suggestions)}
	for _, suggestion := range store.suggestions {
		switch suggestion.State {
		case StateAccepted:
			progress.Accepted++
		case StateRejected:
			progress.Rejected++
		default:
			progress.Pending++
		}
	}
	return progress
}

// Reconstruct computes the edited text for the currently accepted
// suggestions and records it as the derived edited document.
func (store *Store) Reconstruct() (string, error) {
	if store.original.IsZero() {
		return "", ErrNoOriginal
	}
	edited, err := Reconstruct(store.original.Content(), store.suggestions)
	if err != nil {
		return "", err
	}
	store.edited = edited
	store.hasEdited = true
	return edited, nil
}

// Edited returns the last reconstruction recorded by Reconstruct. It is not
// refreshed automatically when states change.
func (store *Store) Edited() (string, bool) {
	return store.edited, store.hasEdited
}

// SetEdited records an edited document materialized elsewhere, such as one
// restored from persistence. It requires an original.
func (store *Store) SetEdited(edited string) error {
	if store.original.IsZero() {
		return ErrNoOriginal
	}
	store.edited = edited
	store.hasEdited = true
	return nil
}

// Overlaps reports overlapping accepted suggestions.
func (store *Store) Overlaps() []Overlap {
	return FindOverlaps(store.suggestions)
}

func (store *Store) transition(id string, next State) TransitionResult {
	position, ok := store.index[id]
	if !ok {
		return TransitionResult{ID: id}
	}
	previous := store.suggestions[position].State
	store.suggestions[position].State = next
	return TransitionResult{ID: id, Found: true, Previous: previous, Current: next}
}

func (store *Store) resolvePending(next State) []string {
	var changed []string
	for position := range store.suggestions {
		if store.suggestions[position].State != StatePending {
			continue
		}
		store.suggestions[position].State = next
		changed = append(changed, store.suggestions[position].ID)
	}
	return changed
}

func (store *Store) clearEdited() {
	store.edited = ""
	store.hasEdited = false
}

func prepareSuggestions(document documents.Document, suggestions []Suggestion) ([]Suggestion, map[string]int, error) {
	length := document.Len()
	normalized := make([]Suggestion, 0, len(suggestions))
	index := make(map[string]int, len(suggestions))

	for position, suggestion := range suggestions {
		suggestion.ID = strings.TrimSpace(suggestion.ID)
		if suggestion.ID == "" {
			return nil, nil, &ValidationError{Index: position, Reason: "empty id"}
		}
		if _, exists := index[suggestion.ID]; exists {
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID, Reason: "duplicate id"}
		}
		switch {
		case suggestion.DocumentID == "":
			suggestion.DocumentID = document.ID().String()
		case suggestion.DocumentID != document.ID().String():
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID,
				Reason: fmt.Sprintf("belongs to document %s", suggestion.DocumentID)}
		}

		r := suggestion.Range
		if r.Start < 0 || r.Start > r.End || r.End > length {
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID,
				Reason: fmt.Sprintf("range %s out of bounds for length %d", r, length)}
		}
		slice := document.Slice(r.Start, r.End)
		switch {
		case suggestion.OriginalText == "":
			suggestion.OriginalText = slice
		case suggestion.OriginalText != slice:
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID,
				Reason: fmt.Sprintf("original text %q does not match %q at %s", suggestion.OriginalText, slice, r)}
		}

		category, err := ParseCategory(string(suggestion.Category))
		if err != nil {
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID, Reason: err.Error()}
		}
		suggestion.Category = category
		state, err := ParseState(string(suggestion.State))
		if err != nil {
			return nil, nil, &ValidationError{Index: position, SuggestionID: suggestion.ID, Reason: err.Error()}
		}
		suggestion.State = state

		index[suggestion.ID] = len(normalized)
		normalized = append(normalized, suggestion)
	}
	return normalized, index, nil
}
