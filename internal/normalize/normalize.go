// Package normalize canonicalizes comment text and taxonomy patterns into the
// form the matcher scans. Both sides must go through Text or matches silently fail.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lowercases s, strips diacritics, turns every rune that is not a letter
// or digit into a separator, collapses separators to one space and trims.
// It is total over arbitrary bytes and idempotent.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, " ")
	s = removeAccents(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// Tokens splits normalized text into words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// removeAccents strips nonspacing marks. The transformer chain is stateful,
// so one is built per call.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
