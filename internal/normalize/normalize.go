// Package normalize folds free text coming out of transcripts so it can be
// compared against CRM labels and used as stable keys.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var entitySuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*\b(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
		`CO\.?|COMPANY|LTD\.?|LIMITED|LLP|PLLC|GMBH|S\.?A\.?\s+DE\s+C\.?V\.?|` +
		`S\.?A\.?|S\.?L\.?|S\.?R\.?L\.?)\s*\.?\s*$`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// StripAccents removes combining marks, so "Negociación" becomes "Negociacion".
func StripAccents(s string) string {
	// Transformers carry state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases, strips accents and collapses whitespace.
func Fold(s string) string {
	s = strings.ToLower(StripAccents(strings.TrimSpace(s)))
	return multiSpace.ReplaceAllString(s, " ")
}

// Slug returns a lowercase ASCII slug joined with sep.
func Slug(s, sep string) string {
	s = nonSlug.ReplaceAllString(Fold(s), sep)
	return strings.Trim(s, sep)
}

// CompanyName strips trailing legal-entity suffixes and normalizes whitespace.
func CompanyName(name string) string {
	n := strings.TrimSpace(name)
	n = entitySuffixes.ReplaceAllString(n, "")
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// genericTokens never identify a company on their own.
var genericTokens = map[string]bool{
	"the": true, "and": true, "de": true, "del": true, "la": true, "el": true, "los": true, "las": true,
	"y": true, "of": true, "inc": true, "llc": true, "corp": true, "co": true, "company": true,
	"group": true, "grupo": true, "sa": true, "cv": true, "sl": true, "ltd": true, "deal": true,
	"negocio": true, "services": true, "servicios": true, "solutions": true, "soluciones": true,
	"international": true, "internacional": true, "global": true,
}

// SignificantTokens splits s into folded words, dropping generic and very
// short ones.
func SignificantTokens(s string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 3 || genericTokens[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ContainsWord reports whether word appears in s as a whole folded word.
func ContainsWord(s, word string) bool {
	word = Fold(word)
	if word == "" {
		return false
	}
	for _, tok := range strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if tok == word {
			return true
		}
	}
	return false
}
