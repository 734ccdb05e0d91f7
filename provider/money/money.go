// Package money parses marketplace price strings
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/storage/types"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// symbols is checked in order, longer markers first
var symbols = []struct {
	marker   string
	currency types.Currency
}{
	{"R$", currencies.BRL},
	{"BRL", currencies.BRL},
	{"US$", currencies.USD},
	{"USD", currencies.USD},
	{"EUR", currencies.EUR},
	{"€", currencies.EUR},
	{"GBP", currencies.GBP},
	{"£", currencies.GBP},
	{"JPY", currencies.JPY},
	{"¥", currencies.JPY},
	{"$", currencies.USD},
}

// ParseAmount parses a localized amount ("R$ 1.234,56", "$1,234.56",
// "12,34 €", "1 234,56"). Only positive amounts are accepted
func ParseAmount(s string) (float64, error) {
	var b strings.Builder

	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}

	raw := strings.Trim(b.String(), ".,")
	if raw == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(normalizeSeparators(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return d.InexactFloat64(), nil
}

// normalizeSeparators rewrites the amount into the "1234.56" form.
// When both separators appear, the last one is the decimal separator.
// A single separator kind is a thousands separator when it repeats or
// is followed by exactly three digits
func normalizeSeparators(raw string) string {
	var (
		lastDot   = strings.LastIndex(raw, ".")
		lastComma = strings.LastIndex(raw, ",")
	)

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", ".")
		}

		return strings.ReplaceAll(raw, ",", "")
	case lastComma >= 0:
		return singleSeparator(raw, ",")
	case lastDot >= 0:
		return singleSeparator(raw, ".")
	default:
		return raw
	}
}

func singleSeparator(raw, sep string) string {
	parts := strings.Split(raw, sep)

	if len(parts) > 2 || len(parts[len(parts)-1]) == 3 {
		return strings.Join(parts, "")
	}

	return strings.Join(parts, ".")
}

// DetectCurrency finds the currency marker in a price string
func DetectCurrency(s string) (types.Currency, error) {
	upper := strings.ToUpper(s)

	for _, sym := range symbols {
		if strings.Contains(upper, sym.marker) {
			return sym.currency, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
}

// ParsePrice parses both the amount and the currency of a price string.
// The fallback currency is used when the string carries no marker
func ParsePrice(s string, fallback types.Currency) (float64, types.Currency, error) {
	amount, err := ParseAmount(s)
	if err != nil {
		return 0, "", err
	}

	currency, err := DetectCurrency(s)
	if err != nil {
		if fallback == "" {
			return 0, "", err
		}

		currency = fallback
	}

	return amount, currency, nil
}
