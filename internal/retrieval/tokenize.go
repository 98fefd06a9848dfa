package retrieval

import (
	"strings"
	"unicode"
)

const minTokenLength = 3

// Tokenize turns a free-text query into lexical search keywords: lowercase,
// punctuation stripped, tokens shorter than three characters dropped, and
// the token count capped at max (non-positive max means no cap).
func Tokenize(query string, max int) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var tokens []string
	for _, f := range fields {
		if len([]rune(f)) < minTokenLength {
			continue
		}
		tokens = append(tokens, f)
		if max > 0 && len(tokens) == max {
			break
		}
	}
	return tokens
}
