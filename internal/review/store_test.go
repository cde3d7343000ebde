package review

import (
	"errors"
	"slices"
	"testing"
)

func TestLoadNormalizesSuggestions(t *testing.T) {
	document := mustDocument(t, "doc-1", "The cat sat.")
	store := mustLoadedStore(t, document, Suggestion{
		ID:              "s-1",
		Range:           Range{Start: 4, End: 7},
		ReplacementText: "dog",
	})

	loaded, ok := store.Suggestion("s-1")
	if !ok {
		t.Fatalf("expected suggestion to be stored")
	}
	if loaded.State != StatePending {
		t.Fatalf("expected pending state, got %s", loaded.State)
	}
	if loaded.Category != CategoryOther {
		t.Fatalf("expected other category, got %s", loaded.Category)
	}
	if loaded.OriginalText != "cat" {
		t.Fatalf("expected original text snapshot, got %q", loaded.OriginalText)
	}
	if loaded.DocumentID != "doc-1" {
		t.Fatalf("expected document id to be filled, got %q", loaded.DocumentID)
	}
}

func TestSetSuggestionsRejectsInvalidBatch(t *testing.T) {
	document := mustDocument(t, "doc-1", "abcdef")

	testCases := []struct {
		name       string
		suggestion Suggestion
	}{
		{name: "negative-start", suggestion: suggestion("bad", -1, 2, "x")},
		{name: "start-after-end", suggestion: suggestion("bad", 4, 2, "x")},
		{name: "end-past-length", suggestion: suggestion("bad", 2, 7, "x")},
		{name: "empty-id", suggestion: suggestion("  ", 0, 1, "x")},
		{name: "duplicate-id", suggestion: suggestion("fresh", 0, 1, "x")},
		{name: "foreign-document", suggestion: Suggestion{ID: "bad", DocumentID: "doc-2", Range: Range{Start: 0, End: 1}}},
		{name: "stale-original-text", suggestion: Suggestion{ID: "bad", Range: Range{Start: 0, End: 2}, OriginalText: "xy"}},
		{name: "unknown-category", suggestion: Suggestion{ID: "bad", Range: Range{Start: 0, End: 1}, Category: "tone"}},
		{name: "unknown-state", suggestion: Suggestion{ID: "bad", Range: Range{Start: 0, End: 1}, State: "maybe"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			store := mustLoadedStore(t, document, accepted("keep", 0, 1, "A"))

			err := store.SetSuggestions([]Suggestion{suggestion("fresh", 1, 2, "B"), testCase.suggestion})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) || validationErr.Index != 1 {
				t.Fatalf("expected validation error for index 1, got %#v", err)
			}

			suggestions := store.Suggestions()
			if len(suggestions) != 1 || suggestions[0].ID != "keep" || suggestions[0].State != StateAccepted {
				t.Fatalf("expected previous state to be kept, got %+v", suggestions)
			}
		})
	}
}

func TestSetSuggestionsAllowsBoundaryRanges(t *testing.T) {
	document := mustDocument(t, "doc-1", "abc")
	store := NewStore()
	store.SetOriginal(document)

	err := store.SetSuggestions([]Suggestion{
		suggestion("insert-front", 0, 0, ">"),
		suggestion("whole", 0, 3, "xyz"),
		suggestion("insert-back", 3, 3, "<"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Progress().Total != 3 {
		t.Fatalf("expected three suggestions, got %d", store.Progress().Total)
	}
}

func TestSetSuggestionsRequiresOriginal(t *testing.T) {
	store := NewStore()
	if err := store.SetSuggestions([]Suggestion{suggestion("s-1", 0, 0, "x")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without original, got %v", err)
	}
}

func TestSetOriginalClearsPriorSession(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "first"), accepted("s-1", 0, 5, "1st"))
	if _, err := store.Reconstruct(); err != nil {
		t.Fatalf("unexpected reconstruct error: %v", err)
	}

	store.SetOriginal(mustDocument(t, "doc-2", "second"))

	if len(store.Suggestions()) != 0 {
		t.Fatalf("expected suggestions to be cleared")
	}
	if _, ok := store.Edited(); ok {
		t.Fatalf("expected edited document to be cleared")
	}
	original, ok := store.Original()
	if !ok || original.ID() != "doc-2" {
		t.Fatalf("expected new original, got %v", original.ID())
	}
}

func TestTransitionsAreFullyConnected(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), suggestion("s-1", 0, 1, "A"))

	steps := []struct {
		name   string
		apply  func(string) TransitionResult
		target State
	}{
		{name: "pending-to-accepted", apply: store.Accept, target: StateAccepted},
		{name: "accepted-to-rejected", apply: store.Reject, target: StateRejected},
		{name: "rejected-to-accepted", apply: store.Accept, target: StateAccepted},
		{name: "accepted-to-pending", apply: store.Undo, target: StatePending},
		{name: "pending-to-rejected", apply: store.Reject, target: StateRejected},
		{name: "rejected-to-pending", apply: store.Undo, target: StatePending},
	}

	previous := StatePending
	for _, step := range steps {
		result := step.apply("s-1")
		if !result.Found {
			t.Fatalf("%s: expected suggestion to be found", step.name)
		}
		if result.Previous != previous || result.Current != step.target {
			t.Fatalf("%s: unexpected transition %s -> %s", step.name, result.Previous, result.Current)
		}
		loaded, _ := store.Suggestion("s-1")
		if loaded.State != step.target {
			t.Fatalf("%s: stored state %s, want %s", step.name, loaded.State, step.target)
		}
		previous = step.target
	}
}

func TestTransitionUnknownIDIsReportedNotFound(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), suggestion("s-1", 0, 1, "A"))

	for name, apply := range map[string]func(string) TransitionResult{
		"accept": store.Accept,
		"reject": store.Reject,
		"undo":   store.Undo,
	} {
		result := apply("missing")
		if result.Found || result.Changed() {
			t.Fatalf("%s: expected not found result, got %+v", name, result)
		}
	}
	if loaded, _ := store.Suggestion("s-1"); loaded.State != StatePending {
		t.Fatalf("expected existing suggestion untouched, got %s", loaded.State)
	}
}

func TestUndoIsIdempotent(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), accepted("s-1", 0, 1, "A"))

	first := store.Undo("s-1")
	second := store.Undo("s-1")

	if first.Current != StatePending || second.Current != StatePending {
		t.Fatalf("expected pending after undo, got %s and %s", first.Current, second.Current)
	}
	if !first.Changed() {
		t.Fatalf("expected first undo to change state")
	}
	if second.Changed() {
		t.Fatalf("expected second undo to be a no-op")
	}
}

func TestAcceptAllAndRejectAllOnlyAffectPending(t *testing.T) {
	document := mustDocument(t, "doc-1", "abcdef")
	build := func() *Store {
		rejected := suggestion("rejected", 2, 3, "C")
		rejected.State = StateRejected
		return mustLoadedStore(t, document,
			suggestion("pending", 0, 1, "A"),
			accepted("accepted", 1, 2, "B"),
			rejected,
		)
	}

	acceptStore := build()
	changed := acceptStore.AcceptAll()
	if !slices.Equal(changed, []string{"pending"}) {
		t.Fatalf("unexpected accept-all changes: %v", changed)
	}
	assertStates(t, acceptStore, map[string]State{
		"pending":  StateAccepted,
		"accepted": StateAccepted,
		"rejected": StateRejected,
	})

	rejectStore := build()
	changed = rejectStore.RejectAll()
	if !slices.Equal(changed, []string{"pending"}) {
		t.Fatalf("unexpected reject-all changes: %v", changed)
	}
	assertStates(t, rejectStore, map[string]State{
		"pending":  StateRejected,
		"accepted": StateAccepted,
		"rejected": StateRejected,
	})

	if again := acceptStore.AcceptAll(); len(again) != 0 {
		t.Fatalf("expected no pending suggestions left, got %v", again)
	}
}

func TestProgressCounts(t *testing.T) {
	rejected := suggestion("r", 2, 3, "C")
	rejected.State = StateRejected
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abcdef"),
		suggestion("p", 0, 1, "A"),
		accepted("a", 1, 2, "B"),
		rejected,
	)

	progress := store.Progress()
	if progress.Total != 3 || progress.Pending != 1 || progress.Accepted != 1 || progress.Rejected != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.PercentReviewed() != 67 {
		t.Fatalf("expected 67%% reviewed, got %d", progress.PercentReviewed())
	}
	if (Progress{}).PercentReviewed() != 0 {
		t.Fatalf("expected empty progress to be 0%%")
	}
}

func TestResetReturnsToEmptyState(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), accepted("s-1", 0, 1, "A"))
	if _, err := store.Reconstruct(); err != nil {
		t.Fatalf("unexpected reconstruct error: %v", err)
	}

	store.Reset()

	if _, ok := store.Original(); ok {
		t.Fatalf("expected original to be cleared")
	}
	if store.Suggestions() != nil {
		t.Fatalf("expected suggestions to be cleared")
	}
	if _, ok := store.Edited(); ok {
		t.Fatalf("expected edited document to be cleared")
	}
	if _, err := store.Reconstruct(); !errors.Is(err, ErrNoOriginal) {
		t.Fatalf("expected no original error, got %v", err)
	}
}

func TestSuggestionsReturnsCopy(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), suggestion("s-1", 0, 1, "A"))

	copied := store.Suggestions()
	copied[0].State = StateAccepted

	if loaded, _ := store.Suggestion("s-1"); loaded.State != StatePending {
		t.Fatalf("expected store to be unaffected by caller mutation")
	}
}

func assertStates(t *testing.T, store *Store, want map[string]State) {
	t.Helper()
	for id, state := range want {
		loaded, ok := store.Suggestion(id)
		if !ok {
			t.Fatalf("missing suggestion %s", id)
		}
		if loaded.State != state {
			t.Fatalf("suggestion %s: got %s, want %s", id, loaded.State, state)
		}
	}
}

func TestSetEditedRestoresMaterializedText(t *testing.T) {
	store := NewStore()
	if err := store.SetEdited("early"); !errors.Is(err, ErrNoOriginal) {
		t.Fatalf("expected no original error, got %v", err)
	}

	store = mustLoadedStore(t, mustDocument(t, "doc-1", "abc"), accepted("s-1", 0, 1, "A"))
	if err := store.SetEdited("Abc"); err != nil {
		t.Fatalf("unexpected set edited error: %v", err)
	}
	if edited, ok := store.Edited(); !ok || edited != "Abc" {
		t.Fatalf("expected restored edited text, got %q (%v)", edited, ok)
	}

	store.Undo("s-1")
	if edited, _ := store.Edited(); edited != "Abc" {
		t.Fatalf("expected edited text to survive transitions, got %q", edited)
	}
}

func TestSetSuggestionsSnapshotsCodePointSlices(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "naïve café"), suggestion("s-1", 6, 10, "bistro"))

	loaded, ok := store.Suggestion("s-1")
	if !ok || loaded.OriginalText != "café" {
		t.Fatalf("expected code point snapshot, got %q", loaded.OriginalText)
	}
	if err := store.SetSuggestions([]Suggestion{{ID: "s-2", Range: Range{Start: 0, End: 5}, OriginalText: "naïve"}}); err != nil {
		t.Fatalf("expected matching original text to validate, got %v", err)
	}
}
