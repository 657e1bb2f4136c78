// Package tokencount approximates the LLM token cost of a piece of text.
//
// The estimate is a chars-per-token heuristic in the spirit of the usual
// "four characters per token" rule, refined by the character mix of the
// text: dense symbolic content (code, markup) tokenizes shorter, while
// space-heavy prose tokenizes longer.
package tokencount

import (
	"math"
	"strings"
	"unicode"
)

// Chars-per-token tiers.
const (
	charsPerTokenSymbolic = 3.0
	charsPerTokenDefault  = 4.0
	charsPerTokenSparse   = 5.0

	symbolRatioThreshold     = 0.3
	whitespaceRatioThreshold = 0.2
)

// Estimate returns the approximate token count for text. It is
// deterministic, returns 0 for empty input, and at least 1 for any
// non-empty input.
func Estimate(text string) int {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return 0
	}

	var total, symbols, spaces int
	for _, r := range normalized {
		total++
		switch {
		case r == ' ':
			spaces++
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			symbols++
		}
	}

	cpt := charsPerTokenDefault
	switch {
	case float64(symbols)/float64(total) > symbolRatioThreshold:
		cpt = charsPerTokenSymbolic
	case float64(spaces)/float64(total) > whitespaceRatioThreshold:
		cpt = charsPerTokenSparse
	}

	tokens := int(math.Ceil(float64(total) / cpt))
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
