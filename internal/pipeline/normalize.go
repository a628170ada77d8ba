// Package pipeline implements the extraction-and-resolution pipeline that
// turns normalized newsletter text into canonical graph entities and facts.
package pipeline

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// corporateSuffixes are trailing tokens stripped from organization-style
// names so "Acme Inc." and "Acme" normalize to the same identity key.
var corporateSuffixes = map[string]struct{}{
	"inc":         {},
	"corp":        {},
	"corporation": {},
	"co":          {},
	"company":     {},
	"llc":         {},
	"ltd":         {},
	"limited":     {},
	"gmbh":        {},
	"ag":          {},
	"plc":         {},
	"sa":          {},
	"holdings":    {},
}

// NameKey derives the normalized matching key for a mention: case-folded,
// punctuation-free, whitespace-collapsed, with common corporate suffixes
// stripped. The key is the identity used for exact and alias matching
// within a type.
func NameKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
		// Remaining punctuation (periods, commas, quotes) is dropped, which
		// folds "Inc." into "inc" before suffix stripping.
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 {
		if _, ok := corporateSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// Similarity scores two normalized keys in [0,1] using edit distance over
// their space-free forms, so "open ai" and "openai" score 1.0.
func Similarity(a, b string) float64 {
	ca := strings.ReplaceAll(a, " ", "")
	cb := strings.ReplaceAll(b, " ", "")
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 1
	}

	longest := len([]rune(ca))
	if l := len([]rune(cb)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(ca, cb)
	return 1 - float64(dist)/float64(longest)
}
