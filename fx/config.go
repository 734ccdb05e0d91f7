package fx

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sig-0/cardprice/storage/types"
)

const (
	DefaultCacheTTL = 6 * time.Hour
	DefaultTimeout  = 8 * time.Second
)

var (
	errInvalidPair     = errors.New("invalid currency pair")
	errInvalidOverride = errors.New("invalid rate override")
)

// Pair is an ordered currency pair (base -> quote)
type Pair struct {
	Base  types.Currency
	Quote types.Currency
}

func (p Pair) String() string {
	return p.Base.String() + "_" + p.Quote.String()
}

// ParsePair parses "USD_BRL" (also "USD/BRL", "USD-BRL")
func ParsePair(s string) (Pair, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '/' || r == '-'
	})

	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return Pair{}, fmt.Errorf("%w: %q", errInvalidPair, s)
	}

	return Pair{
		Base:  types.Currency(fields[0]),
		Quote: types.Currency(fields[1]),
	}, nil
}

// ParseOverrides parses "USD_BRL=5.25,EUR_BRL=6.1"
func ParseOverrides(s string) (map[Pair]float64, error) {
	out := make(map[Pair]float64)

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", errInvalidOverride, item)
		}

		pair, err := ParsePair(key)
		if err != nil {
			return nil, err
		}

		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || !validRate(rate) {
			return nil, fmt.Errorf("%w: %q", errInvalidOverride, item)
		}

		out[pair] = rate
	}

	return out, nil
}

// Config is the converter configuration
type Config struct {
	// Overrides are manual rates, consulted before anything else
	Overrides map[Pair]float64

	// CacheTTL is how long a fetched rate is served from memory
	CacheTTL time.Duration

	// Timeout bounds a single provider lookup
	Timeout time.Duration
}

// DefaultConfig returns the default converter configuration
func DefaultConfig() Config {
	return Config{
		Overrides: make(map[Pair]float64),
		CacheTTL:  DefaultCacheTTL,
		Timeout:   DefaultTimeout,
	}
}

func validRate(r float64) bool {
	return r > 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
}
