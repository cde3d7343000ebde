package sessions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("sessions: invalid owner id")
	// ErrInvalidAction indicates an unknown suggestion action.
	ErrInvalidAction = errors.New("sessions: invalid action")
	// ErrDocumentNotFound indicates that the owner has no session for the document.
	ErrDocumentNotFound = errors.New("sessions: document not found")
)

// OwnerID represents a validated session owner identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// Action enumerates the per-suggestion review actions.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionUndo   Action = "undo"
)

// ParseAction validates a client supplied action.
func ParseAction(rawInput string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(rawInput))) {
	case ActionAccept:
		return ActionAccept, nil
	case ActionReject:
		return ActionReject, nil
	case ActionUndo:
		return ActionUndo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, rawInput)
	}
}

// DocumentRecord persists an ingested document and its last reconstruction.
type DocumentRecord struct {
	OwnerID          string `gorm:"column:owner_id;primaryKey;size:190;not null;index:idx_documents_owner_created,priority:1"`
	DocumentID       string `gorm:"column:document_id;primaryKey;size:190;not null"`
	Name             string `gorm:"column:name;size:255;not null"`
	Format           string `gorm:"column:format;size:32;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	SizeBytes        int64  `gorm:"column:size_bytes;not null;default:0"`
	EditedText       string `gorm:"column:edited_text;type:text;not null;default:''"`
	HasEdited        bool   `gorm:"column:has_edited;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_documents_owner_created,priority:2"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRecord) TableName() string {
	return "documents"
}

// SuggestionRecord persists one suggestion. Ordinal preserves insertion
// order, which breaks ties during reconstruction.
type SuggestionRecord struct {
	OwnerID         string `gorm:"column:owner_id;primaryKey;size:190;not null;index:idx_suggestions_document,priority:1"`
	DocumentID      string `gorm:"column:document_id;primaryKey;size:190;not null;index:idx_suggestions_document,priority:2"`
	SuggestionID    string `gorm:"column:suggestion_id;primaryKey;size:190;not null"`
	Ordinal         int    `gorm:"column:ordinal;not null;index:idx_suggestions_document,priority:3"`
	StartOffset     int    `gorm:"column:start_offset;not null"`
	EndOffset       int    `gorm:"column:end_offset;not null"`
	OriginalText    string `gorm:"column:original_text;type:text;not null"`
	ReplacementText string `gorm:"column:replacement_text;type:text;not null"`
	Category        string `gorm:"column:category;size:32;not null"`
	State           string `gorm:"column:state;size:32;not null;default:'pending'"`
}

// TableName provides the explicit table binding for GORM.
func (SuggestionRecord) TableName() string {
	return "suggestions"
}

func newDocumentRecord(owner OwnerID, document documents.Document, updatedAt time.Time) DocumentRecord {
	return DocumentRecord{
		OwnerID:          owner.String(),
		DocumentID:       document.ID().String(),
		Name:             document.Name(),
		Format:           document.Format().String(),
		Content:          document.Content(),
		SizeBytes:        document.SizeBytes(),
		CreatedAtSeconds: document.CreatedAt().Unix(),
		UpdatedAtSeconds: updatedAt.UTC().Unix(),
	}
}

func (record DocumentRecord) document() (documents.Document, error) {
	documentID, err := documents.NewDocumentID(record.DocumentID)
	if err != nil {
		return documents.Document{}, err
	}
	format, err := documents.ParseFormat(record.Format)
	if err != nil {
		return documents.Document{}, err
	}
	return documents.NewDocument(documents.DocumentConfig{
		ID:        documentID,
		Name:      record.Name,
		Content:   record.Content,
		Format:    format,
		SizeBytes: record.SizeBytes,
		CreatedAt: time.Unix(record.CreatedAtSeconds, 0),
	})
}

func newSuggestionRecords(owner OwnerID, suggestions []review.Suggestion) []SuggestionRecord {
	records := make([]SuggestionRecord, 0, len(suggestions))
	for ordinal, suggestion := range suggestions {
		records = append(records, SuggestionRecord{
			OwnerID:         owner.String(),
			DocumentID:      suggestion.DocumentID,
			SuggestionID:    suggestion.ID,
			Ordinal:         ordinal,
			StartOffset:     suggestion.Range.Start,
			EndOffset:       suggestion.Range.End,
			OriginalText:    suggestion.OriginalText,
			ReplacementText: suggestion.ReplacementText,
			Category:        string(suggestion.Category),
			State:           string(suggestion.State),
		})
	}
	return records
}

func (record SuggestionRecord) suggestion() review.Suggestion {
	// Category and state are validated again when the store loads.
	return review.Suggestion{
		ID:              record.SuggestionID,
		DocumentID:      record.DocumentID,
		Range:           review.Range{Start: record.StartOffset, End: record.EndOffset},
		OriginalText:    record.OriginalText,
		ReplacementText: record.ReplacementText,
		Category:        review.Category(record.Category),
		State:           review.State(record.State),
	}
}
