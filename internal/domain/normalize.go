package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining marks after NFD decomposition, so "BOGOTÁ"
// becomes "BOGOTA" and "CHOCÓ" becomes "CHOCO".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalizer canonicalizes free-text department, municipality, and event
// strings. Normalization is a fixed sequence — strip diacritics, uppercase,
// collapse internal whitespace — followed by an exact lookup in a versioned
// alias table ("SANTA FE DE BOGOTA" → "BOGOTA"). Variants with no alias
// entry pass through base-normalized only; guessing is the resolver's job
// to refuse, not the normalizer's to attempt.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer from an alias table. Keys and values
// are base-normalized; a value that is itself an alias key would make
// normalization non-idempotent, so that is rejected.
func NewNormalizer(aliases map[string]string) (*Normalizer, error) {
	table := make(map[string]string, len(aliases))
	for k, v := range aliases {
		table[baseForm(k)] = baseForm(v)
	}
	for k, v := range table {
		if canon, ok := table[v]; ok && canon != v {
			return nil, fmt.Errorf("alias %q maps to %q which is itself aliased to %q", k, v, canon)
		}
	}
	return &Normalizer{aliases: table}, nil
}

// Normalize returns the canonical form of text. It is pure and idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	base := baseForm(text)
	if canonical, ok := n.aliases[base]; ok {
		return canonical
	}
	return base
}

// Known reports whether text (in base form) has an explicit alias entry.
func (n *Normalizer) Known(text string) bool {
	_, ok := n.aliases[baseForm(text)]
	return ok
}

// baseForm applies the alias-independent steps: diacritics stripped,
// uppercased, internal whitespace collapsed to single spaces.
func baseForm(text string) string {
	stripped, _, err := transform.String(deaccent, text)
	if err != nil {
		// Remove is infallible for valid UTF-8; fall back to the input
		// rather than corrupt it.
		stripped = text
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}
