// Package generator produces candidate suggestions for an ingested document.
package generator

import (
	"context"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
)

// Generator proposes suggestions for a document. Implementations must anchor
// every suggestion to code point offsets of the document content.
type Generator interface {
	Generate(ctx context.Context, document documents.Document) ([]review.Suggestion, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, document documents.Document) ([]review.Suggestion, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, document documents.Document) ([]review.Suggestion, error) {
	return f(ctx, document)
}

// Noop never proposes anything.
var Noop Generator = Func(func(context.Context, documents.Document) ([]review.Suggestion, error) {
	return nil, nil
})
