package server

import (
	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
)

type documentPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Format           string `json:"format"`
	MimeType         string `json:"mime_type"`
	SizeBytes        int64  `json:"size_bytes"`
	Size             string `json:"size"`
	Length           int    `json:"length"`
	Content          string `json:"content,omitempty"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func newDocumentPayload(document documents.Document) documentPayload {
	return documentPayload{
		ID:               document.ID().String(),
		Name:             document.Name(),
		Format:           document.Format().String(),
		MimeType:         documents.MimeType(document.Format()),
		SizeBytes:        document.SizeBytes(),
		Size:             documents.DescribeSize(document.SizeBytes()),
		Length:           document.Len(),
		CreatedAtSeconds: document.CreatedAt().Unix(),
	}
}

type suggestionPayload struct {
	ID              string `json:"id"`
	Start           int    `json:"start"`
	End             int    `json:"end"`
	OriginalText    string `json:"original_text"`
	ReplacementText string `json:"replacement_text"`
	Category        string `json:"category"`
	State           string `json:"state"`
}

func newSuggestionPayload(suggestion review.Suggestion) suggestionPayload {
	return suggestionPayload{
		ID:              suggestion.ID,
		Start:           suggestion.Range.Start,
		End:             suggestion.Range.End,
		OriginalText:    suggestion.OriginalText,
		ReplacementText: suggestion.ReplacementText,
		Category:        string(suggestion.Category),
		State:           string(suggestion.State),
	}
}

// suggestion leaves validation to the store, which rejects the whole batch.
func (payload suggestionPayload) suggestion() review.Suggestion {
	return review.Suggestion{
		ID:              payload.ID,
		Range:           review.Range{Start: payload.Start, End: payload.End},
		OriginalText:    payload.OriginalText,
		ReplacementText: payload.ReplacementText,
		Category:        review.Category(payload.Category),
		State:           review.State(payload.State),
	}
}

type progressPayload struct {
	Total           int `json:"total"`
	Pending         int `json:"pending"`
	Accepted        int `json:"accepted"`
	Rejected        int `json:"rejected"`
	PercentReviewed int `json:"percent_reviewed"`
}

func newProgressPayload(progress review.Progress) progressPayload {
	return progressPayload{
		Total:           progress.Total,
		Pending:         progress.Pending,
		Accepted:        progress.Accepted,
		Rejected:        progress.Rejected,
		PercentReviewed: progress.PercentReviewed(),
	}
}

type overlapPayload struct {
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
}

func newOverlapPayloads(overlaps []review.Overlap) []overlapPayload {
	payloads := make([]overlapPayload, 0, len(overlaps))
	for _, overlap := range overlaps {
		payloads = append(payloads, overlapPayload{FirstID: overlap.First.ID, SecondID: overlap.Second.ID})
	}
	return payloads
}

type snapshotPayload struct {
	Document         documentPayload     `json:"document"`
	Suggestions      []suggestionPayload `json:"suggestions"`
	Progress         progressPayload     `json:"progress"`
	Overlaps         []overlapPayload    `json:"overlaps"`
	Edited           *string             `json:"edited,omitempty"`
	UpdatedAtSeconds int64               `json:"updated_at_s"`
}

func newSnapshotPayload(snapshot sessions.Snapshot) snapshotPayload {
	document := newDocumentPayload(snapshot.Document)
	document.Content = snapshot.Document.Content()

	payload := snapshotPayload{
		Document:         document,
		Suggestions:      make([]suggestionPayload, 0, len(snapshot.Suggestions)),
		Progress:         newProgressPayload(snapshot.Progress),
		Overlaps:         newOverlapPayloads(snapshot.Overlaps),
		UpdatedAtSeconds: snapshot.UpdatedAt.Unix(),
	}
	for _, suggestion := range snapshot.Suggestions {
		payload.Suggestions = append(payload.Suggestions, newSuggestionPayload(suggestion))
	}
	if snapshot.HasEdited {
		edited := snapshot.Edited
		payload.Edited = &edited
	}
	return payload
}

type summaryPayload struct {
	Document         documentPayload `json:"document"`
	Progress         progressPayload `json:"progress"`
	UpdatedAtSeconds int64           `json:"updated_at_s"`
}

type listResponsePayload struct {
	Documents []summaryPayload `json:"documents"`
}
