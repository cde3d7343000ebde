package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Format enumerates the source formats a document can be ingested from.
type Format string

const (
	// FormatPlain is a plain text upload.
	FormatPlain Format = "plain"
	// FormatWordProcessor is an OOXML word-processing upload.
	FormatWordProcessor Format = "wordproc"
	// FormatPDF is a PDF upload.
	FormatPDF Format = "pdf"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("documents: invalid document id")
	// ErrInvalidFormat indicates that a format value is not one of the supported formats.
	ErrInvalidFormat = errors.New("documents: invalid format")
	// ErrInvalidContent indicates that document content is not valid UTF-8.
	ErrInvalidContent = errors.New("documents: invalid content")
)

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentID, maxIdentifierLength)
	}
	return DocumentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// ParseFormat validates a persisted or client supplied format value.
func ParseFormat(rawInput string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(rawInput))) {
	case FormatPlain:
		return FormatPlain, nil
	case FormatWordProcessor:
		return FormatWordProcessor, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, rawInput)
	}
}

// String returns the format name.
func (format Format) String() string {
	return string(format)
}

// Document is an immutable ingested document. Its content is the single
// source of truth for suggestion offsets.
type Document struct {
	id        DocumentID
	name      string
	content   string
	runes     []rune
	format    Format
	sizeBytes int64
	createdAt time.Time
}

// DocumentConfig describes the inputs required to build a Document.
type DocumentConfig struct {
	ID        DocumentID
	Name      string
	Content   string
	Format    Format
	SizeBytes int64
	CreatedAt time.Time
}

// NewDocument validates the provided configuration and returns a Document.
func NewDocument(cfg DocumentConfig) (Document, error) {
	if cfg.ID == "" {
		return Document{}, fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if _, err := ParseFormat(cfg.Format.String()); err != nil {
		return Document{}, err
	}
	if !utf8.ValidString(cfg.Content) {
		return Document{}, fmt.Errorf("%w: not valid utf-8", ErrInvalidContent)
	}
	sizeBytes := cfg.SizeBytes
	if sizeBytes <= 0 {
		sizeBytes = int64(len(cfg.Content))
	}
	return Document{
		id:        cfg.ID,
		name:      strings.TrimSpace(cfg.Name),
		content:   cfg.Content,
		runes:     []rune(cfg.Content),
		format:    cfg.Format,
		sizeBytes: sizeBytes,
		createdAt: cfg.CreatedAt.UTC(),
	}, nil
}

// ID returns the document identifier.
func (document Document) ID() DocumentID {
	return document.id
}

// Name returns the uploaded file name.
func (document Document) Name() string {
	return document.name
}

// Content returns the extracted text.
func (document Document) Content() string {
	return document.content
}

// Format returns the source format.
func (document Document) Format() Format {
	return document.format
}

// SizeBytes returns the size of the uploaded payload.
func (document Document) SizeBytes() int64 {
	return document.sizeBytes
}

// CreatedAt returns the ingestion time.
func (document Document) CreatedAt() time.Time {
	return document.createdAt
}

// Len returns the content length in code points, the unit every offset uses.
func (document Document) Len() int {
	return len(document.runes)
}

// Slice returns the content between the code point offsets start and end.
// Out of range bounds are clamped.
func (document Document) Slice(start, end int) string {
	start = max(0, min(start, len(document.runes)))
	end = max(start, min(end, len(document.runes)))
	return string(document.runes[start:end])
}

// IsZero reports whether the document was never initialized.
func (document Document) IsZero() bool {
	return document.id == ""
}
