// Package aggregate runs a card price search across the marketplace
// adapters and reduces the results to a single estimate
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/relevance"
	"github.com/sig-0/cardprice/stats"
	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	DefaultSourceTimeout  = 30 * time.Second
	DefaultMaxListings    = 40
	DefaultMaxUnconverted = 6

	snapshotTimeout = 10 * time.Second
	convertTimeout  = 10 * time.Second
)

var (
	errNoRelevantResults = errors.New("no relevant results")
	errDeadlineExceeded  = errors.New("deadline exceeded before source completed")
)

// Converter converts listing currencies into the target currency
type Converter interface {
	// Quote returns the base -> quote rate, or false when unavailable
	Quote(ctx context.Context, base, quote types.Currency) (*types.ExchangeRate, bool)
}

// Request is a single aggregation request
type Request struct {
	// CardID identifies the card for snapshots (optional)
	CardID string

	// Currency is the target currency (defaults to the aggregator's)
	Currency types.Currency

	// Sources restricts the search to the given adapters (all when empty)
	Sources []types.Source

	Card types.CardIdentity

	// Save appends the result to the price history, if storage is set
	Save bool
}

// Aggregator fans a card search out to the marketplace adapters
type Aggregator struct {
	logger    *slog.Logger
	registry  *provider.Registry
	converter Converter
	validator *relevance.Validator
	storage   storage.Storage
	now       func() time.Time

	currency       types.Currency
	sourceTimeout  time.Duration
	maxListings    int
	maxUnconverted int
	maxConcurrency int
	sourceMinimums bool
}

// New creates a new aggregator over the registered adapters
func New(registry *provider.Registry, converter Converter, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry:       registry,
		converter:      converter,
		validator:      relevance.New(),
		now:            time.Now,
		currency:       currencies.BRL,
		sourceTimeout:  DefaultSourceTimeout,
		maxListings:    DefaultMaxListings,
		maxUnconverted: DefaultMaxUnconverted,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Sources returns the identifiers of the registered adapters
func (a *Aggregator) Sources() []types.Source {
	return a.registry.IDs()
}

// Aggregate searches every selected adapter for the card and summarizes the
// prices found. It always returns a result; failures are reported in it.
// The context deadline bounds the whole search, sources that have not
// completed by then are left out of the result
func (a *Aggregator) Aggregate(ctx context.Context, req *Request) *types.AggregationResult {
	start := a.now().UTC()

	target := req.Currency.Normalize()
	if target == "" {
		target = a.currency
	}

	res := &types.AggregationResult{
		StartedAt:   start,
		Card:        req.Card,
		CardID:      req.CardID,
		Currency:    target,
		Status:      types.StatusUnresolved,
		Attempts:    []string{},
		Listings:    []*types.ConvertedListing{},
		Unconverted: []*types.Listing{},
		Sources:     []*types.SourceReport{},
	}

	defer func() {
		res.Duration = a.now().UTC().Sub(start)

		a.logger.Info(
			"aggregation complete",
			"card_id", req.CardID,
			"card", req.Card.Name,
			"number", req.Card.Number.String(),
			"status", res.Status,
			"price", res.Price,
			"listings", len(res.Listings),
			"duration", res.Duration.String(),
		)
	}()

	sources, err := a.registry.Select(req.Sources...)
	if err != nil {
		res.Reason = err.Error()

		return res
	}

	if len(sources) == 0 {
		res.Reason = "no sources configured"

		return res
	}

	reports := a.collect(ctx, sources, req.Card)

	// Pool the relevant listings of every source
	pool := make([]*types.Listing, 0, 64)

	for _, r := range reports {
		res.Sources = append(res.Sources, r)
		res.RawCount += r.RawCount

		for _, q := range r.Attempts {
			if !slices.Contains(res.Attempts, q) {
				res.Attempts = append(res.Attempts, q)
			}
		}

		if res.Query == "" && r.Query != "" {
			res.Query = r.Query
		}

		pool = append(pool, r.Listings...)
	}

	// Rates for a partial result are fetched past the search deadline
	convertCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), convertTimeout)
	defer cancelFn()

	converted := a.convert(convertCtx, pool, target, res)

	prices := make([]float64, 0, len(converted))
	for _, c := range converted {
		prices = append(prices, c.Price)
	}

	_, fence := stats.FilterIQR(prices)
	_, summary := stats.Summarize(prices)

	if summary.Count == 0 {
		res.Reason = a.unresolvedReason(reports, pool, target)

		return res
	}

	kept := make([]*types.ConvertedListing, 0, summary.Count)
	for _, c := range converted {
		if stats.Within(fence, c.Price) {
			kept = append(kept, c)
		}
	}

	slices.SortStableFunc(kept, func(x, y *types.ConvertedListing) int {
		switch {
		case x.Price < y.Price:
			return -1
		case x.Price > y.Price:
			return 1
		default:
			return 0
		}
	})

	res.Status = types.StatusResolved
	res.Stats = summary
	res.Price = summary.Median
	res.Low3Avg = summary.Low3Avg
	res.Listings = kept[:min(len(kept), a.maxListings)]

	if req.Save {
		a.snapshot(ctx, req, res)
	}

	return res
}

// convert expresses the pooled listings in the target currency. Listings
// without a usable rate are kept aside for display
func (a *Aggregator) convert(
	ctx context.Context,
	pool []*types.Listing,
	target types.Currency,
	res *types.AggregationResult,
) []*types.ConvertedListing {
	converted := make([]*types.ConvertedListing, 0, len(pool))

	for _, l := range pool {
		if !l.Valid() {
			continue
		}

		rate, ok := a.converter.Quote(ctx, l.Currency, target)
		if !ok || rate == nil || rate.Rate <= 0 {
			if len(res.Unconverted) < a.maxUnconverted {
				res.Unconverted = append(res.Unconverted, l)
			}

			continue
		}

		converted = append(converted, &types.ConvertedListing{
			RateAsOf:   rate.AsOf,
			Listing:    l,
			Currency:   target,
			RateSource: rate.Source,
			Price:      l.Price * rate.Rate,
			Rate:       rate.Rate,
		})
	}

	return converted
}

// unresolvedReason explains why no price could be produced
func (a *Aggregator) unresolvedReason(
	reports []*types.SourceReport,
	pool []*types.Listing,
	target types.Currency,
) string {
	if len(pool) > 0 {
		return fmt.Sprintf("no listings could be converted to %s", target)
	}

	reasons := make([]string, 0, len(reports))

	for _, r := range reports {
		if r.Reason != "" {
			reasons = append(reasons, r.Source.String()+": "+r.Reason)
		}
	}

	if len(reasons) == 0 {
		return errNoRelevantResults.Error()
	}

	return errNoRelevantResults.Error() + " (" + strings.Join(reasons, "; ") + ")"
}

// snapshot appends the result to the price history. Failures are
// reported on the result and never fail the aggregation
func (a *Aggregator) snapshot(
	ctx context.Context,
	req *Request,
	res *types.AggregationResult,
) {
	if a.storage == nil {
		return
	}

	if req.CardID == "" {
		a.appendReason(res, "snapshot skipped: no card id")

		return
	}

	snapshots := Snapshots(res, a.sourceMinimums, a.now().UTC())

	// The snapshot outlives a request deadline that just expired
	saveCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancelFn()

	for _, s := range snapshots {
		if err := a.storage.AppendSnapshot(saveCtx, s); err != nil {
			a.logger.Error(
				"unable to save price snapshot",
				"card_id", s.CardID,
				"source", s.Source,
				"err", err,
			)

			a.appendReason(res, fmt.Sprintf("snapshot %s failed: %s", s.Source, err))

			continue
		}

		res.Snapshots = append(res.Snapshots, s)
	}
}

func (a *Aggregator) appendReason(res *types.AggregationResult, reason string) {
	if res.Reason == "" {
		res.Reason = reason

		return
	}

	res.Reason += "; " + reason
}

// Snapshots builds the price history entries for a resolved result: the
// aggregate median, and optionally the cheapest reported listing of each
// source. Unresolved results yield none
func Snapshots(
	res *types.AggregationResult,
	minimums bool,
	capturedAt time.Time,
) []*types.PriceSnapshot {
	if !res.Resolved() || res.CardID == "" {
		return nil
	}

	snapshots := []*types.PriceSnapshot{{
		ID:         xid.New().String(),
		CardID:     res.CardID,
		Price:      res.Price,
		Currency:   res.Currency,
		Source:     types.SnapshotSourceAggregate,
		CapturedAt: capturedAt,
	}}

	if minimums {
		snapshots = append(snapshots, sourceMinimums(res.CardID, res.Currency, res.Listings, capturedAt)...)
	}

	return snapshots
}

// sourceMinimums builds one snapshot per source holding its cheapest
// listing
func sourceMinimums(
	cardID string,
	currency types.Currency,
	listings []*types.ConvertedListing,
	capturedAt time.Time,
) []*types.PriceSnapshot {
	minBySource := make(map[types.Source]float64)
	order := make([]types.Source, 0)

	for _, c := range listings {
		src := c.Listing.Source

		cur, ok := minBySource[src]
		if !ok {
			order = append(order, src)
		}

		if !ok || c.Price < cur {
			minBySource[src] = c.Price
		}
	}

	out := make([]*types.PriceSnapshot, 0, len(order))

	for _, src := range order {
		out = append(out, &types.PriceSnapshot{
			ID:         xid.New().String(),
			CardID:     cardID,
			Price:      stats.Round(minBySource[src]),
			Currency:   currency,
			Source:     types.SourceMinimumTag(src),
			CapturedAt: capturedAt,
		})
	}

	return out
}
