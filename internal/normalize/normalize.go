// Package normalize provides utilities for normalizing values used as
// lookup keys, so that index hits don't depend on how the user typed them.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Email canonicalizes an email address for storage and index lookups.
// Lowercased, surrounding whitespace stripped. We deliberately do not
// strip plus-addressing or dots; those are valid distinct mailboxes.
func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Key canonicalizes an arbitrary string for use as a secondary-index key.
// Unicode NFD decomposition with combining marks removed ("Márquez" and
// "Marquez" hit the same key), lowercased, whitespace collapsed.
func Key(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the input.
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
