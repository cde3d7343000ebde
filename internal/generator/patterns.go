package generator

import (
	"cmp"
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
)

// clarityLookbehind is measured in characters.
const clarityLookbehind = 30

var errMissingIDProvider = errors.New("generator: id provider is required")

// rule matches a pattern whose first capture group is the text to replace.
type rule struct {
	category review.Category
	pattern  *regexp.Regexp
	// replace returns the replacement for the captured text found at byte
	// offset start, or false to skip the match.
	replace func(content string, captured string, start int, end int) (string, bool)
}

func fixed(replacement string) func(string, string, int, int) (string, bool) {
	return func(string, string, int, int) (string, bool) {
		return replacement, true
	}
}

var (
	followingModal  = regexp.MustCompile(`^ (?:are|were|will|can|could|would|should)\b`)
	trailingWordRxp = regexp.MustCompile(`\b(?:[A-Z][a-z]+|[a-z]+)\b`)
)

func defaultRules() []rule {
	return []rule{
		{category: review.CategoryGrammar, pattern: regexp.MustCompile(`\b(i)\b`), replace: fixed("I")},
		{category: review.CategoryGrammar, pattern: regexp.MustCompile(`\b(dont|doesnt|isnt|arent|cant|wont|shouldnt)\b`),
			replace: func(_ string, captured string, _ int, _ int) (string, bool) {
				return captured[:len(captured)-1] + "'t", true
			}},
		{category: review.CategoryGrammar, pattern: regexp.MustCompile(`\b(its) (?:a|the|my|your|their|our)\b`), replace: fixed("it's")},
		{category: review.CategoryGrammar, pattern: regexp.MustCompile(`\b(effect) (?:of|on|to)\b`), replace: fixed("affect")},
		{category: review.CategoryGrammar, pattern: regexp.MustCompile(`\b(your) (?:going|supposed|able)\b`), replace: fixed("you're")},

		{category: review.CategoryStyle, pattern: regexp.MustCompile(`\b(very)\b`), replace: fixed("extremely")},
		{category: review.CategoryStyle, pattern: regexp.MustCompile(`\b(good)\b`), replace: fixed("excellent")},
		{category: review.CategoryStyle, pattern: regexp.MustCompile(`\b(bad)\b`), replace: fixed("poor")},
		{category: review.CategoryStyle, pattern: regexp.MustCompile(`\b(big)\b`), replace: fixed("substantial")},
		{category: review.CategoryStyle, pattern: regexp.MustCompile(`\b(small)\b`), replace: fixed("minimal")},

		{category: review.CategoryClarity, pattern: regexp.MustCompile(`\b(this) (?:is|was|will|can|could|would|should)\b`),
			replace: func(content string, captured string, start int, _ int) (string, bool) {
				window := content[runesBefore(content, start, clarityLookbehind):start]
				words := trailingWordRxp.FindAllString(window, -1)
				if len(words) == 0 {
					return "", false
				}
				return captured + " " + words[len(words)-1], true
			}},
		{category: review.CategoryClarity, pattern: regexp.MustCompile(`\b(things?)\b`),
			replace: func(_ string, captured string, _ int, _ int) (string, bool) {
				if captured == "things" {
					return "items", true
				}
				return "item", true
			}},
		{category: review.CategoryClarity, pattern: regexp.MustCompile(`\b(they)\b`),
			replace: func(content string, _ string, _ int, end int) (string, bool) {
				if followingModal.MatchString(content[end:]) {
					return "", false
				}
				return "the team", true
			}},
	}
}

// runesBefore returns the byte offset count characters before end.
func runesBefore(content string, end int, count int) int {
	offset := end
	for ; count > 0 && offset > 0; count-- {
		_, size := utf8.DecodeLastRuneInString(content[:offset])
		offset -= size
	}
	return offset
}

type fallbackWord struct {
	word        string
	replacement string
	category    review.Category
}

var fallbackWords = []fallbackWord{
	{word: "sample", replacement: "example", category: review.CategoryStyle},
	{word: "document", replacement: "manuscript", category: review.CategoryStyle},
	{word: "testing", replacement: "evaluation", category: review.CategoryClarity},
}

// PatternGeneratorConfig describes the dependencies of a PatternGenerator.
type PatternGeneratorConfig struct {
	IDProvider documents.IDProvider
}

// PatternGenerator proposes suggestions from a fixed set of lexical heuristics.
type PatternGenerator struct {
	idProvider documents.IDProvider
	rules      []rule
}

// NewPatternGenerator constructs a PatternGenerator.
func NewPatternGenerator(cfg PatternGeneratorConfig) (*PatternGenerator, error) {
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	return &PatternGenerator{idProvider: cfg.IDProvider, rules: defaultRules()}, nil
}

type candidate struct {
	byteStart   int
	byteEnd     int
	order       int
	original    string
	replacement string
	category    review.Category
}

// Generate returns suggestions ordered by start offset.
func (generator *PatternGenerator) Generate(ctx context.Context, document documents.Document) ([]review.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := document.Content()

	var candidates []candidate
	for order, rule := range generator.rules {
		for _, match := range rule.pattern.FindAllStringSubmatchIndex(content, -1) {
			start, end := match[2], match[3]
			captured := content[start:end]
			replacement, ok := rule.replace(content, captured, start, end)
			if !ok || replacement == captured {
				continue
			}
			candidates = append(candidates, candidate{
				byteStart:   start,
				byteEnd:     end,
				order:       order,
				original:    captured,
				replacement: replacement,
				category:    rule.category,
			})
		}
	}
	if len(candidates) == 0 {
		candidates = fallbackCandidates(content)
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if byStart := cmp.Compare(a.byteStart, b.byteStart); byStart != 0 {
			return byStart
		}
		return cmp.Compare(a.order, b.order)
	})

	suggestions := make([]review.Suggestion, 0, len(candidates))
	cursorByte, cursorRune := 0, 0
	for _, entry := range candidates {
		cursorRune += utf8.RuneCountInString(content[cursorByte:entry.byteStart])
		cursorByte = entry.byteStart

		id, err := generator.idProvider.NewID()
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, review.Suggestion{
			ID:         id,
			DocumentID: document.ID().String(),
			Range: review.Range{
				Start: cursorRune,
				End:   cursorRune + utf8.RuneCountInString(entry.original),
			},
			OriginalText:    entry.original,
			ReplacementText: entry.replacement,
			Category:        entry.category,
			State:           review.StatePending,
		})
	}
	return suggestions, nil
}

func fallbackCandidates(content string) []candidate {
	var candidates []candidate
	for order, fallback := range fallbackWords {
		start := strings.Index(content, fallback.word)
		if start < 0 {
			continue
		}
		candidates = append(candidates, candidate{
			byteStart:   start,
			byteEnd:     start + len(fallback.word),
			order:       order,
			original:    fallback.word,
			replacement: fallback.replacement,
			category:    fallback.category,
		})
	}
	return candidates
}
