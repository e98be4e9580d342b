// Package citationkey mints the short, deterministic identifier every paper
// in the citation graph is keyed by: a surname plus up to two title tokens,
// lowercased, alphanumeric-only, joined by an underscore.
//
// Minting is pure and deterministic by construction: the same (surnames,
// title) pair always produces the same key, whether it comes from a source
// paper's own header or from another paper's bibliography entry for it.
// Collisions between distinct works are possible and are not disambiguated
// here; the store treats colliding keys as the same node.
package citationkey

import (
	"strings"
	"unicode"
)

// stopWords is a fixed English stop-word list. Title tokens matching an
// entry here never contribute to a minted key.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "to": true, "with": true,
	"from": true, "by": true, "at": true, "is": true, "are": true,
	"as": true, "into": true, "via": true, "using": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "be": true,
	"it": true, "their": true, "our": true, "about": true, "over": true,
	"under": true, "between": true, "through": true, "towards": true,
	"toward": true, "than": true, "but": true, "not": true, "no": true,
}

const unknownSurname = "unknown"

// Mint derives a CitationKey from an ordered list of author surnames and a
// title. surnames may be empty, in which case the literal "unknown" is used
// as the surname component. title may be empty or consist entirely of stop
// words, in which case the key is just the surname component.
func Mint(surnames []string, title string) string {
	surname := unknownSurname
	if len(surnames) > 0 {
		surname = surnames[0]
	}
	surnameKey := alphanumericLower(surname)
	if surnameKey == "" {
		surnameKey = unknownSurname
	}

	var titleParts []string
	for _, word := range strings.Fields(title) {
		token := alphanumericLower(word)
		if token == "" || stopWords[token] {
			continue
		}
		titleParts = append(titleParts, token)
		if len(titleParts) == 2 {
			break
		}
	}

	if len(titleParts) == 0 {
		return surnameKey
	}
	return surnameKey + "_" + strings.Join(titleParts, "")
}

// alphanumericLower lowercases s and strips every rune that is not a letter
// or digit.
func alphanumericLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
