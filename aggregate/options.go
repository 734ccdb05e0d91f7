package aggregate

import (
	"log/slog"
	"time"

	"github.com/sig-0/cardprice/relevance"
	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

type Option func(a *Aggregator)

// WithLogger specifies the logger for the aggregator
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// WithStorage enables price snapshots on the given storage
func WithStorage(s storage.Storage) Option {
	return func(a *Aggregator) {
		a.storage = s
	}
}

// WithValidator overrides the relevance validator
func WithValidator(v *relevance.Validator) Option {
	return func(a *Aggregator) {
		a.validator = v
	}
}

// WithCurrency sets the default target currency. Defaults to BRL
func WithCurrency(c types.Currency) Option {
	return func(a *Aggregator) {
		a.currency = c.Normalize()
	}
}

// WithSourceTimeout bounds the time a single source may take.
// Defaults to 30s
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.sourceTimeout = d
	}
}

// WithMaxListings caps the listings reported on a result. Defaults to 40
func WithMaxListings(n int) Option {
	return func(a *Aggregator) {
		a.maxListings = n
	}
}

// WithMaxConcurrency caps the sources searched at once.
// Defaults to all selected sources
func WithMaxConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.maxConcurrency = n
	}
}

// WithSourceMinimums also snapshots the cheapest listing of each source
func WithSourceMinimums(enabled bool) Option {
	return func(a *Aggregator) {
		a.sourceMinimums = enabled
	}
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}
