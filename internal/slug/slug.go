// Package slug derives the public identifier of a sketch from its title and author.
//
// Identifiers are never stored. Every read recomputes them, so renaming a
// sketch's title or author changes its identifier.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	titleDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	nameDisallowed  = regexp.MustCompile(`[^a-z0-9-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	hyphenRun       = regexp.MustCompile(`-+`)
)

// Turkish İ and ı have no decomposition that folds them to ASCII.
var turkishFold = strings.NewReplacer("İ", "I", "ı", "i")

// Identity is a derived sketch identifier. Compare Identity values, not raw strings.
type Identity string

// String returns the identifier text.
func (id Identity) String() string {
	return string(id)
}

// Parse turns a user-supplied identifier (e.g. a path segment) into an Identity.
func Parse(s string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeASCII folds diacritics: decomposes to NFD and drops combining marks.
func NormalizeASCII(s string) string {
	s = turkishFold.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify converts a title to lowercase words joined by single hyphens.
//
//	Slugify("Frog")            // "frog"
//	Slugify("  Çiçek Bahçesi ") // "cicek-bahcesi"
//	Slugify("Rain -- Drops!")  // "rain-drops"
func Slugify(title string) string {
	s := strings.ToLower(NormalizeASCII(asciiSpaces(title)))
	s = strings.TrimSpace(s)
	s = titleDisallowed.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// asciiSpaces maps every Unicode space (NBSP, ideographic space, ...) to ' '
// so the ASCII-only \s classes below see it as a word break.
func asciiSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

// LastName returns the last whitespace-separated token of author, folded and lowercased.
func LastName(author string) string {
	fields := strings.Fields(NormalizeASCII(author))
	if len(fields) == 0 {
		return ""
	}
	last := strings.ToLower(fields[len(fields)-1])
	last = nameDisallowed.ReplaceAllString(last, "")
	last = hyphenRun.ReplaceAllString(last, "-")
	return strings.Trim(last, "-")
}

// Derive computes the identifier for a (title, author) pair.
// The result only contains [a-z0-9-].
func Derive(title, author string) Identity {
	parts := make([]string, 0, 2)
	if t := Slugify(title); t != "" {
		parts = append(parts, t)
	}
	if n := LastName(author); n != "" {
		parts = append(parts, n)
	}
	return Identity(strings.Join(parts, "-"))
}
