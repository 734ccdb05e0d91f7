// Package fx converts listing prices between currencies
package fx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sig-0/cardprice/storage/types"
)

var (
	errInvalidRate = errors.New("invalid rate")
	errNoProviders = errors.New("no rate providers configured")
)

// Provider is a remote exchange rate source
type Provider interface {
	// Name returns the human-readable name of the provider
	Name() string

	// Rate fetches the base -> quote rate
	Rate(ctx context.Context, base, quote types.Currency) (float64, error)
}

// Converter resolves exchange rates from overrides, an in-memory cache,
// and an ordered list of providers (primary first)
type Converter struct {
	logger    *slog.Logger
	cache     *rateCache
	overrides map[Pair]float64
	now       func() time.Time

	providers []Provider
	group     singleflight.Group
	timeout   time.Duration
}

// New creates a new converter
func New(cfg Config, providers []Provider, opts ...Option) *Converter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	overrides := make(map[Pair]float64, len(cfg.Overrides))
	for p, r := range cfg.Overrides {
		if !validRate(r) {
			continue
		}

		overrides[Pair{Base: p.Base.Normalize(), Quote: p.Quote.Normalize()}] = r
	}

	c := &Converter{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:     newRateCache(cfg.CacheTTL),
		overrides: overrides,
		now:       time.Now,
		providers: providers,
		timeout:   cfg.Timeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Quote returns the rate for base -> quote along with its provenance.
// The second value is false when no valid rate could be found
func (c *Converter) Quote(ctx context.Context, base, quote types.Currency) (*types.ExchangeRate, bool) {
	var (
		now  = c.now().UTC()
		pair = Pair{Base: base.Normalize(), Quote: quote.Normalize()}
	)

	if pair.Base == "" || pair.Quote == "" {
		return nil, false
	}

	if pair.Base == pair.Quote {
		return &types.ExchangeRate{
			AsOf:      now,
			FetchedAt: now,
			Base:      pair.Base,
			Target:    pair.Quote,
			RateType:  types.RateTypeMID,
			Source:    "identity",
			Rate:      1,
		}, true
	}

	if r, ok := c.overrides[pair]; ok {
		return &types.ExchangeRate{
			AsOf:      now,
			FetchedAt: now,
			Base:      pair.Base,
			Target:    pair.Quote,
			RateType:  types.RateTypeOverride,
			Source:    "override",
			Rate:      r,
		}, true
	}

	if cached, ok := c.cache.get(pair, now); ok {
		return &cached, true
	}

	// Single fetch per pair, concurrent callers share the result
	res, err, _ := c.group.Do(pair.String(), func() (any, error) {
		if cached, ok := c.cache.get(pair, c.now().UTC()); ok {
			return &cached, nil
		}

		rate, fetchErr := c.fetch(ctx, pair)
		if fetchErr != nil {
			return nil, fetchErr
		}

		c.cache.put(pair, *rate, c.now().UTC())

		return rate, nil
	})
	if err != nil {
		c.logger.Warn(
			"exchange rate unavailable",
			"pair", pair.String(),
			"err", err,
		)

		return nil, false
	}

	rate, _ := res.(*types.ExchangeRate)
	out := *rate

	return &out, true
}

// Rate returns the base -> quote rate
func (c *Converter) Rate(ctx context.Context, base, quote types.Currency) (float64, bool) {
	r, ok := c.Quote(ctx, base, quote)
	if !ok {
		return 0, false
	}

	return r.Rate, true
}

// Convert converts a positive amount from base to quote
func (c *Converter) Convert(ctx context.Context, amount float64, base, quote types.Currency) (float64, bool) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}

	r, ok := c.Rate(ctx, base, quote)
	if !ok {
		return 0, false
	}

	return amount * r, true
}

// fetch walks the providers in order, returning the first valid rate
func (c *Converter) fetch(ctx context.Context, pair Pair) (*types.ExchangeRate, error) {
	errs := make([]error, 0, len(c.providers))

	for _, p := range c.providers {
		fetchCtx, cancelFn := context.WithTimeout(ctx, c.timeout)
		r, err := p.Rate(fetchCtx, pair.Base, pair.Quote)

		cancelFn()

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

			continue
		}

		if !validRate(r) {
			errs = append(errs, fmt.Errorf("%s: %w: %v", p.Name(), errInvalidRate, r))

			continue
		}

		now := c.now().UTC()

		return &types.ExchangeRate{
			AsOf:      now,
			FetchedAt: now,
			Base:      pair.Base,
			Target:    pair.Quote,
			RateType:  types.RateTypeMID,
			Source:    p.Name(),
			Rate:      r,
		}, nil
	}

	if len(errs) == 0 {
		return nil, errNoProviders
	}

	return nil, errors.Join(errs...)
}
