package documents

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	mimePlain         = "text/plain"
	mimeWordProcessor = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF           = "application/pdf"

	maxNameLength = 255
)

var (
	// ErrUnsupportedFormat indicates that neither the MIME type nor the extension is supported.
	ErrUnsupportedFormat = errors.New("documents: unsupported format")
	// ErrInvalidUpload indicates that the upload failed validation.
	ErrInvalidUpload = errors.New("documents: invalid upload")
	// ErrEmptyContent indicates that no text could be extracted from the upload.
	ErrEmptyContent = errors.New("documents: empty content")
	// ErrMissingIDProvider indicates that an ingestor was built without an id source.
	ErrMissingIDProvider = errors.New("documents: id provider is required")
)

// DetectFormat resolves the document format from the MIME type, falling
// back to the file extension when the MIME type is missing or unknown.
func DetectFormat(name, mimeType string) (Format, error) {
	normalizedMime := strings.ToLower(strings.TrimSpace(mimeType))
	if index := strings.Index(normalizedMime, ";"); index >= 0 {
		normalizedMime = strings.TrimSpace(normalizedMime[:index])
	}
	switch normalizedMime {
	case mimePlain:
		return FormatPlain, nil
	case mimeWordProcessor:
		return FormatWordProcessor, nil
	case mimePDF:
		return FormatPDF, nil
	}

	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".txt":
		return FormatPlain, nil
	case ".docx":
		return FormatWordProcessor, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: name=%q mime=%q", ErrUnsupportedFormat, name, mimeType)
}

// MimeType returns the canonical MIME type for a format.
func MimeType(format Format) string {
	switch format {
	case FormatWordProcessor:
		return mimeWordProcessor
	case FormatPDF:
		return mimePDF
	default:
		return mimePlain
	}
}

// DescribeSize renders a byte count for display.
func DescribeSize(sizeBytes int64) string {
	switch {
	case sizeBytes < 1024:
		return fmt.Sprintf("%d bytes", sizeBytes)
	case sizeBytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(sizeBytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(sizeBytes)/(1024*1024))
	}
}

// Upload is the raw input handed over by the ingestion collaborator after
// text extraction.
type Upload struct {
	Name      string
	MimeType  string
	Content   string
	SizeBytes int64
}

// Validate checks the upload against the configured size limit. Both the
// declared size and the extracted content must fit.
func (upload Upload) Validate(maxBytes int64) error {
	return validation.ValidateStruct(&upload,
		validation.Field(&upload.Name,
			validation.Required,
			validation.Length(1, maxNameLength),
		),
		validation.Field(&upload.Content,
			validation.By(validUTF8),
			validation.When(maxBytes > 0, validation.Length(0, int(maxBytes))),
		),
		validation.Field(&upload.SizeBytes,
			validation.Min(int64(0)),
			validation.When(maxBytes > 0, validation.Max(maxBytes)),
		),
	)
}

func validUTF8(value interface{}) error {
	text, _ := value.(string)
	if !utf8.ValidString(text) {
		return errors.New("must be valid UTF-8")
	}
	return nil
}

// IngestorConfig describes the dependencies required to build an Ingestor.
type IngestorConfig struct {
	IDProvider IDProvider
	Clock      func() time.Time
	MaxBytes   int64
}

// Ingestor turns validated uploads into immutable documents.
type Ingestor struct {
	idProvider IDProvider
	clock      func() time.Time
	maxBytes   int64
}

// NewIngestor constructs an Ingestor.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.IDProvider == nil {
		return nil, ErrMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ingestor{
		idProvider: cfg.IDProvider,
		clock:      clock,
		maxBytes:   cfg.MaxBytes,
	}, nil
}

// Ingest validates the upload and returns a new Document.
func (ingestor *Ingestor) Ingest(upload Upload) (Document, error) {
	if upload.SizeBytes == 0 {
		upload.SizeBytes = int64(len(upload.Content))
	}
	if err := upload.Validate(ingestor.maxBytes); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	format, err := DetectFormat(upload.Name, upload.MimeType)
	if err != nil {
		return Document{}, err
	}
	// Scanned PDFs legitimately extract to no text.
	if format != FormatPDF && strings.TrimSpace(upload.Content) == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyContent, upload.Name)
	}

	rawID, err := ingestor.idProvider.NewID()
	if err != nil {
		return Document{}, err
	}
	documentID, err := NewDocumentID(rawID)
	if err != nil {
		return Document{}, err
	}

	return NewDocument(DocumentConfig{
		ID:        documentID,
		Name:      upload.Name,
		Content:   upload.Content,
		Format:    format,
		SizeBytes: upload.SizeBytes,
		CreatedAt: ingestor.clock(),
	})
}
