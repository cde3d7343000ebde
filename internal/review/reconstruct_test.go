package review

import (
	"errors"
	"testing"
)

func TestReconstructIdentityWithoutAccepted(t *testing.T) {
	original := "The cat sat."
	rejected := suggestion("r", 4, 7, "dog")
	rejected.State = StateRejected

	edited, err := Reconstruct(original, []Suggestion{suggestion("p", 0, 3, "A"), rejected})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited != original {
		t.Fatalf("expected identity, got %q", edited)
	}

	edited, err = Reconstruct(original, nil)
	if err != nil || edited != original {
		t.Fatalf("expected identity for empty set, got %q (%v)", edited, err)
	}
}

func TestReconstructSingleAccepted(t *testing.T) {
	edited, err := Reconstruct("The cat sat.", []Suggestion{accepted("s-1", 4, 7, "dog")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited != "The dog sat." {
		t.Fatalf("unexpected reconstruction %q", edited)
	}
}

func TestReconstructIndependentOfStorageOrder(t *testing.T) {
	original := "I go there. He is bad."
	first := accepted("we", 0, 1, "We")
	second := accepted("good", 18, 21, "good")

	for name, ordering := range map[string][]Suggestion{
		"ascending":  {first, second},
		"descending": {second, first},
	} {
		edited, err := Reconstruct(original, ordering)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if edited != "We go there. He is good." {
			t.Fatalf("%s: unexpected reconstruction %q", name, edited)
		}
	}
}

func TestReconstructLengthChangingEdits(t *testing.T) {
	original := "a b c d"
	edited, err := Reconstruct(original, []Suggestion{
		accepted("grow", 0, 1, "alpha"),
		accepted("drop", 2, 4, ""),
		accepted("insert", 7, 7, "!"),
		accepted("shrink", 6, 7, "D"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited != "alpha c D!" {
		t.Fatalf("unexpected reconstruction %q", edited)
	}
}

func TestReconstructUsesCodePointOffsets(t *testing.T) {
	original := "naïve café"
	edited, err := Reconstruct(original, []Suggestion{accepted("s-1", 6, 10, "bistro")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited != "naïve bistro" {
		t.Fatalf("unexpected reconstruction %q", edited)
	}
}

func TestReconstructOverlapIsDeterministic(t *testing.T) {
	original := "abcdef"
	suggestions := []Suggestion{
		accepted("left", 0, 4, "XX"),
		accepted("right", 2, 6, "YY"),
	}

	overlaps := FindOverlaps(suggestions)
	if len(overlaps) != 1 {
		t.Fatalf("expected one overlap, got %d", len(overlaps))
	}
	if overlaps[0].First.ID != "left" || overlaps[0].Second.ID != "right" {
		t.Fatalf("unexpected overlap pair %s/%s", overlaps[0].First.ID, overlaps[0].Second.ID)
	}

	for attempt := 0; attempt < 3; attempt++ {
		edited, err := Reconstruct(original, suggestions)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edited != "XX" {
			t.Fatalf("unexpected overlap reconstruction %q", edited)
		}
	}
}

func TestReconstructTieBreaksByEndThenInsertionOrder(t *testing.T) {
	original := "abcdef"

	edited, err := Reconstruct(original, []Suggestion{
		accepted("short", 2, 3, "S"),
		accepted("long", 2, 5, "LONG"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// long [2,5) first -> "abLONGf", then short [2,3) -> "abSONGf".
	if edited != "abSONGf" {
		t.Fatalf("unexpected reconstruction %q", edited)
	}

	edited, err = Reconstruct(original, []Suggestion{
		accepted("first", 3, 3, "1"),
		accepted("second", 3, 3, "2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited != "abc21def" {
		t.Fatalf("unexpected insertion order result %q", edited)
	}
}

func TestReconstructRejectsCorruptRange(t *testing.T) {
	_, err := Reconstruct("abc", []Suggestion{accepted("s-1", 1, 9, "x")})
	if !errors.Is(err, ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) || rangeErr.SuggestionID != "s-1" || rangeErr.Length != 3 {
		t.Fatalf("unexpected range error %#v", err)
	}

	if _, err := Reconstruct("abc", []Suggestion{suggestion("pending", 1, 9, "x")}); err != nil {
		t.Fatalf("pending suggestions must not be range checked, got %v", err)
	}
}

func TestFindOverlapsIgnoresTouchingAndUnaccepted(t *testing.T) {
	overlaps := FindOverlaps([]Suggestion{
		accepted("a", 0, 2, "x"),
		accepted("b", 2, 4, "y"),
		accepted("empty", 4, 4, "z"),
		suggestion("pending", 1, 3, "w"),
		accepted("inside", 5, 6, "v"),
		accepted("outer", 4, 8, "u"),
	})
	if len(overlaps) != 1 {
		t.Fatalf("expected one overlap, got %+v", overlaps)
	}
	if overlaps[0].First.ID != "outer" || overlaps[0].Second.ID != "inside" {
		t.Fatalf("unexpected pair %s/%s", overlaps[0].First.ID, overlaps[0].Second.ID)
	}
}

func TestStoreReconstructRecordsEdited(t *testing.T) {
	store := mustLoadedStore(t, mustDocument(t, "doc-1", "The cat sat."), suggestion("s-1", 4, 7, "dog"))
	store.Accept("s-1")

	edited, err := store.Reconstruct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recorded, ok := store.Edited()
	if !ok || recorded != edited || edited != "The dog sat." {
		t.Fatalf("unexpected recorded edit %q (%v)", recorded, ok)
	}

	store.Undo("s-1")
	if stale, _ := store.Edited(); stale != "The dog sat." {
		t.Fatalf("expected edited document to stay until recomputed, got %q", stale)
	}
}
