// Package textdiff compares two texts word by word and labels every piece
// of them as unchanged, inserted or removed.
package textdiff

import (
	"iter"
	"slices"
	"strings"
	"unicode"
)

// Kind labels a segment.
type Kind string

const (
	KindUnchanged Kind = "unchanged"
	KindInserted  Kind = "inserted"
	KindRemoved   Kind = "removed"
)

// Segment is a run of text sharing one Kind.
type Segment struct {
	Text string
	Kind Kind
}

// Summary counts words per kind.
type Summary struct {
	UnchangedWords int
	InsertedWords  int
	RemovedWords   int
}

// DefaultMaxEdits bounds the token edit distance Words aligns exactly.
const DefaultMaxEdits = 1000

// Words returns the segments turning original into edited. Unchanged and
// removed segments concatenate to original, unchanged and inserted segments
// to edited. Adjacent segments never share a kind, and within a changed
// region removed text is emitted before inserted text.
//
// The sequence is computed on every iteration, so it can be ranged over
// more than once and always yields the same segments for the same inputs.
// Changes further apart than DefaultMaxEdits are reported as in WordsWithLimit.
func Words(original, edited string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if original == edited {
			if original != "" {
				yield(Segment{Text: original, Kind: KindUnchanged})
			}
			return
		}
		segments, _ := align(Tokenize(original), Tokenize(edited), DefaultMaxEdits)
		for _, segment := range segments {
			if !yield(segment) {
				return
			}
		}
	}
}

// WordsWithLimit computes the segments eagerly. When more than maxEdits
// tokens differ it reports tooLarge, and everything between the common
// prefix and suffix comes back as one removed and one inserted segment.
// A non-positive maxEdits disables the limit.
func WordsWithLimit(original, edited string, maxEdits int) (segments iter.Seq[Segment], tooLarge bool) {
	if original == edited {
		return Words(original, edited), false
	}
	aligned, exact := align(Tokenize(original), Tokenize(edited), maxEdits)
	return slices.Values(aligned), !exact
}

// Collect materializes a segment sequence.
func Collect(segments iter.Seq[Segment]) []Segment {
	return slices.Collect(segments)
}

// Summarize counts the words carried by each kind of segment.
func Summarize(segments iter.Seq[Segment]) Summary {
	var summary Summary
	for segment := range segments {
		words := len(strings.Fields(segment.Text))
		switch segment.Kind {
		case KindInserted:
			summary.InsertedWords += words
		case KindRemoved:
			summary.RemovedWords += words
		default:
			summary.UnchangedWords += words
		}
	}
	return summary
}

// Tokenize splits text into alternating runs of whitespace and non-whitespace.
// Punctuation stays attached to the word it touches.
func Tokenize(text string) []string {
	var tokens []string
	start := 0
	previousSpace := false
	for offset, r := range text {
		space := unicode.IsSpace(r)
		if offset > 0 && space != previousSpace {
			tokens = append(tokens, text[start:offset])
			start = offset
		}
		previousSpace = space
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func align(a, b []string, maxEdits int) ([]Segment, bool) {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	var builder segmentBuilder
	builder.add(KindUnchanged, a[:prefix]...)

	middleA := a[prefix : len(a)-suffix]
	middleB := b[prefix : len(b)-suffix]
	var removed, inserted []string
	flush := func() {
		builder.add(KindRemoved, removed...)
		builder.add(KindInserted, inserted...)
		removed, inserted = removed[:0], inserted[:0]
	}
	script, exact := editScript(middleA, middleB, maxEdits)
	if !exact {
		builder.add(KindRemoved, middleA...)
		builder.add(KindInserted, middleB...)
		builder.add(KindUnchanged, a[len(a)-suffix:]...)
		return builder.segments(), false
	}
	for _, step := range script {
		switch step.kind {
		case KindUnchanged:
			flush()
			builder.add(KindUnchanged, middleA[step.indexA])
		case KindRemoved:
			removed = append(removed, middleA[step.indexA])
		case KindInserted:
			inserted = append(inserted, middleB[step.indexB])
		}
	}
	flush()

	builder.add(KindUnchanged, a[len(a)-suffix:]...)
	return builder.segments(), true
}

type segmentBuilder struct {
	done    []Segment
	kind    Kind
	current strings.Builder
}

func (builder *segmentBuilder) add(kind Kind, tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	if builder.current.Len() > 0 && builder.kind != kind {
		builder.done = append(builder.done, Segment{Text: builder.current.String(), Kind: builder.kind})
		builder.current.Reset()
	}
	builder.kind = kind
	for _, token := range tokens {
		builder.current.WriteString(token)
	}
}

func (builder *segmentBuilder) segments() []Segment {
	if builder.current.Len() > 0 {
		builder.done = append(builder.done, Segment{Text: builder.current.String(), Kind: builder.kind})
		builder.current.Reset()
	}
	return builder.done
}
