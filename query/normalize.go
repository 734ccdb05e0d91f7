package query

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tokenRe = regexp.MustCompile(`[a-z0-9]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks ("Céus" -> "Ceus")
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return out
}

// Fold lowercases and strips accents, for comparisons
func Fold(s string) string {
	return strings.ToLower(StripAccents(s))
}

// Tokens returns the alphanumeric tokens of the folded string,
// dropping single-character tokens
func Tokens(s string) []string {
	all := tokenRe.FindAllString(Fold(s), -1)
	out := all[:0]

	for _, tok := range all {
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}

	return out
}

// AllTokens returns every alphanumeric token of the folded string
func AllTokens(s string) []string {
	return tokenRe.FindAllString(Fold(s), -1)
}

// simplify drops apostrophes and collapses whitespace
func simplify(s string) string {
	s = strings.NewReplacer("'", "", "’", "", "`", "").Replace(s)

	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// join concatenates the non-empty parts, removing words already seen
// (case and accent insensitive)
func join(parts ...string) string {
	var (
		seen  = make(map[string]struct{})
		words = make([]string, 0, len(parts)*2)
	)

	for _, part := range parts {
		for _, w := range strings.Fields(part) {
			k := Fold(w)
			if _, ok := seen[k]; ok {
				continue
			}

			seen[k] = struct{}{}
			words = append(words, w)
		}
	}

	return strings.Join(words, " ")
}
