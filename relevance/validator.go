// Package relevance decides whether a listing title refers to a given card
package relevance

import (
	"regexp"
	"strconv"

	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

var (
	fullNumberRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	numberRe     = regexp.MustCompile(`\d+`)
)

// DefaultStopwords are name tokens too generic to identify a card alone
var DefaultStopwords = []string{
	"team", "rocket", "rockets", "trainer", "supporter", "promo",
	"the", "of", "and", "de", "da", "do",
	"ex", "gx", "v", "vstar", "vmax", "lv", "x",
}

// Thresholds are the tunable token corroboration limits
type Thresholds struct {
	// MinHits is the number of name tokens the title must contain
	MinHits int

	// MinPrincipalHits is how many of those must be non-stopwords
	MinPrincipalHits int

	// FallbackPrincipalHits and FallbackHits form the looser second tier.
	// Zero disables the tier
	FallbackPrincipalHits int
	FallbackHits          int

	// RequireName demands a principal name hit even when the number matched
	RequireName bool
}

// DefaultThresholds returns the standard tiering
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHits:               2,
		MinPrincipalHits:      1,
		FallbackPrincipalHits: 1,
		FallbackHits:          1,
	}
}

// Validator checks listing titles against card identities
type Validator struct {
	stopwords  map[string]struct{}
	thresholds Thresholds
}

// New creates a new validator
func New(opts ...Option) *Validator {
	v := &Validator{
		thresholds: DefaultThresholds(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.stopwords == nil {
		v.stopwords = toSet(DefaultStopwords)
	}

	return v
}

// IsRelevant reports whether the title refers to the card
func (v *Validator) IsRelevant(title string, card types.CardIdentity) bool {
	return v.Matcher(card).Relevant(title)
}

// Matcher precomputes the card tokens for repeated checks
func (v *Validator) Matcher(card types.CardIdentity) *Matcher {
	m := &Matcher{
		number:     card.Number,
		thresholds: v.thresholds,
	}

	seen := make(map[string]struct{})

	for _, tok := range append(query.Tokens(card.Name), query.Tokens(card.LocalizedName)...) {
		if _, ok := seen[tok]; ok {
			continue
		}

		seen[tok] = struct{}{}

		if _, stop := v.stopwords[tok]; stop {
			m.auxiliary = append(m.auxiliary, tok)

			continue
		}

		m.principal = append(m.principal, tok)
	}

	return m
}

// Matcher is a card-bound relevance check. It is immutable and safe for
// concurrent use
type Matcher struct {
	principal  []string
	auxiliary  []string
	number     types.PrintedNumber
	thresholds Thresholds
}

// Relevant reports whether the title refers to the matcher's card. Name
// tokens must appear as whole title tokens
func (m *Matcher) Relevant(title string) bool {
	t := query.Fold(title)

	if !m.numberMatches(t) {
		return false
	}

	tokens := query.AllTokens(title)

	titleSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		titleSet[tok] = struct{}{}
	}

	var principalHits, hits int

	for _, tok := range m.principal {
		if _, ok := titleSet[tok]; ok {
			principalHits++
		}
	}

	hits = principalHits

	for _, tok := range m.auxiliary {
		if _, ok := titleSet[tok]; ok {
			hits++
		}
	}

	if m.thresholds.RequireName && principalHits == 0 {
		return false
	}

	if m.hasNumberToken(tokens) {
		return true
	}

	if hits >= m.thresholds.MinHits && principalHits >= m.thresholds.MinPrincipalHits {
		return true
	}

	if m.thresholds.FallbackPrincipalHits == 0 && m.thresholds.FallbackHits == 0 {
		return false
	}

	return principalHits >= m.thresholds.FallbackPrincipalHits && hits >= m.thresholds.FallbackHits
}

// numberMatches applies the printed number gate on the folded title
func (m *Matcher) numberMatches(t string) bool {
	switch {
	case m.number.Full():
		for _, match := range fullNumberRe.FindAllStringSubmatch(t, -1) {
			x, errX := strconv.Atoi(match[1])
			y, errY := strconv.Atoi(match[2])

			if errX == nil && errY == nil &&
				x == m.number.Numerator && y == m.number.Denominator {
				return true
			}
		}

		return false
	case m.number.HasNumerator():
		first := numberRe.FindString(t)
		if first == "" {
			return false
		}

		x, err := strconv.Atoi(first)

		return err == nil && x == m.number.Numerator
	default:
		return true
	}
}

// hasNumberToken reports whether the numerator appears as a whole token
func (m *Matcher) hasNumberToken(tokens []string) bool {
	if !m.number.HasNumerator() {
		return false
	}

	for _, tok := range tokens {
		if x, err := strconv.Atoi(tok); err == nil && x == m.number.Numerator {
			return true
		}
	}

	return false
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))

	for _, w := range words {
		set[query.Fold(w)] = struct{}{}
	}

	return set
}
