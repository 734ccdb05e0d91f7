// Package query builds the ordered search strings tried against a marketplace
package query

import (
	"strconv"
	"strings"

	"github.com/sig-0/cardprice/storage/types"
)

const (
	// DefaultMaxVariants is used when the profile does not set a cap
	DefaultMaxVariants = 12

	// maxVariants is the hard upper bound on generated variants
	maxVariants = 24
)

type Locale string

const (
	LocaleEN Locale = "en"
	LocalePT Locale = "pt"
)

// Profile describes how a marketplace likes to be queried
type Profile struct {
	// Locale selects localized card and set names
	Locale Locale

	// Prefix is the category hint prepended to name-only queries ("pokemon tcg")
	Prefix string

	// BareNumber allows the printed number alone as a last resort
	BareNumber bool

	// SplitNumber adds a "name X Y" variant for sites that tokenize on "/"
	SplitNumber bool

	// MaxVariants caps the variant list (0 uses DefaultMaxVariants)
	MaxVariants int
}

func (p Profile) limit() int {
	switch {
	case p.MaxVariants <= 0:
		return DefaultMaxVariants
	case p.MaxVariants > maxVariants:
		return maxVariants
	default:
		return p.MaxVariants
	}
}

// Variants returns the deduplicated search strings for the card, most
// specific first. The output is deterministic for a given input
func Variants(card types.CardIdentity, profile Profile) []string {
	var (
		name      = simplify(card.Name)
		localName = simplify(card.LocalizedName)
		set       = simplify(card.Set)
		localSet  = simplify(card.LocalizedSet)
		full      string
		x         string
	)

	if name == "" && localName == "" && !card.Number.HasNumerator() {
		return nil
	}

	if name == "" {
		name = localName
	}

	if localName == "" {
		localName = LocalizeName(name, profile.Locale)
	}

	if localSet == "" {
		localSet = LocalizeSet(set, profile.Locale)
	}

	if profile.Locale != LocalePT {
		// Non-localized marketplaces get the original names first
		localName, localSet = name, set
	}

	if card.Number.Full() {
		full = card.Number.String()
	}

	if card.Number.HasNumerator() {
		x = strconv.Itoa(card.Number.Numerator)
	}

	candidates := make([]string, 0, 16)
	add := func(parts ...string) {
		candidates = append(candidates, join(parts...))
	}

	// Full printed number
	if full != "" {
		add(localName, localSet, full)
		add(name, set, full)

		if profile.SplitNumber {
			add(name, x, strconv.Itoa(card.Number.Denominator))
		}
	}

	// Numerator only
	if x != "" {
		add(localName, localSet, x)
		add(name, set, x)
		add(localName, x)
		add(name, x)
	}

	// Name alone
	if profile.Prefix != "" {
		add(profile.Prefix, StripAccents(localName))
		add(profile.Prefix, StripAccents(name))
	}

	add(localName)
	add(StripAccents(name))

	// Bare number, last resort
	if profile.BareNumber {
		add(full)
		add(x)
	}

	return dedupe(candidates, profile.limit())
}

// dedupe removes empty and repeated candidates (case and accent insensitive),
// preserving first-seen order, and caps the result
func dedupe(candidates []string, limit int) []string {
	var (
		seen = make(map[string]struct{}, len(candidates))
		out  = make([]string, 0, len(candidates))
	)

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		k := Fold(c)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, c)

		if len(out) == limit {
			break
		}
	}

	return out
}
