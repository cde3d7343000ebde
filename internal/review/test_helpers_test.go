package review

import (
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
)

func mustDocument(t *testing.T, id string, content string) documents.Document {
	t.Helper()
	documentID, err := documents.NewDocumentID(id)
	if err != nil {
		t.Fatalf("unexpected document id error: %v", err)
	}
	document, err := documents.NewDocument(documents.DocumentConfig{
		ID:        documentID,
		Name:      id + ".txt",
		Content:   content,
		Format:    documents.FormatPlain,
		CreatedAt: time.Unix(1700000000, 0),
	})
	if err != nil {
		t.Fatalf("unexpected document error: %v", err)
	}
	return document
}

func mustLoadedStore(t *testing.T, document documents.Document, suggestions ...Suggestion) *Store {
	t.Helper()
	store := NewStore()
	if err := store.Load(document, suggestions); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	return store
}

func suggestion(id string, start, end int, replacement string) Suggestion {
	return Suggestion{
		ID:              id,
		Range:           Range{Start: start, End: end},
		ReplacementText: replacement,
		Category:        CategoryOther,
	}
}

func accepted(id string, start, end int, replacement string) Suggestion {
	s := suggestion(id, start, end, replacement)
	s.State = StateAccepted
	return s
}
