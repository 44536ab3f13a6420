package workforce

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctuationRe = regexp.MustCompile(`[.,'"()\-_/]+`)
)

// NormalizeName folds a name for comparison:
//  1. ToLower, TrimSpace
//  2. Strip diacritics (NFD decompose, drop combining marks)
//  3. Punctuation becomes a space
//  4. Collapse whitespace
//
// "  José  O'Brien-Khan " and "jose o brien khan" normalize to the same value.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return s
	}
	s = stripDiacritics(s)
	s = punctuationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
