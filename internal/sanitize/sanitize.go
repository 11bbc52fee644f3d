// Package sanitize normalizes page names, component ids and site identities
// into safe file-system and URL tokens.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/pagesmith/internal/errors"
)

const pageExt = ".html"

// Name lower-cases s, folds accents and replaces anything outside
// [a-z0-9._-] with a single dash.
func Name(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastDash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.Trim(b.String(), "-._")
}

// Site returns the sanitized site identity: lowercase with no whitespace.
func Site(s string) string {
	return Name(s)
}

// ComponentID sanitizes a component id. An id that sanitizes to nothing is
// rejected.
func ComponentID(id string) (string, error) {
	clean := Name(id)
	if clean == "" {
		return "", errors.ErrInvalidName(id)
	}
	return clean, nil
}

// PageName sanitizes a page file name and normalizes its .html suffix.
// Names that try to leave the pages directory are rejected.
func PageName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if strings.Contains(trimmed, "..") || strings.ContainsAny(trimmed, `/\`) {
		return "", errors.ErrPathTraversal(name)
	}

	base := strings.TrimSuffix(strings.ToLower(trimmed), ".htm")
	base = strings.TrimSuffix(base, pageExt)
	clean := Name(base)
	if clean == "" {
		return "", errors.ErrInvalidName(name)
	}

	return clean + pageExt, nil
}
