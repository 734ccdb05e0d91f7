package server

import (
	"context"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/storage/types"
)

type (
	aggregateDelegate func(context.Context, *aggregate.Request) *types.AggregationResult
	sourcesDelegate   func() []types.Source
	quoteDelegate     func(context.Context, types.Currency, types.Currency) (*types.ExchangeRate, bool)
)

type mockPricer struct {
	aggregateFn aggregateDelegate
	sourcesFn   sourcesDelegate
}

func (m *mockPricer) Aggregate(ctx context.Context, req *aggregate.Request) *types.AggregationResult {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, req)
	}

	return &types.AggregationResult{Status: types.StatusUnresolved}
}

func (m *mockPricer) Sources() []types.Source {
	if m.sourcesFn != nil {
		return m.sourcesFn()
	}

	return nil
}

type mockRates struct {
	quoteFn quoteDelegate
}

func (m *mockRates) Quote(
	ctx context.Context,
	base, quote types.Currency,
) (*types.ExchangeRate, bool) {
	if m.quoteFn != nil {
		return m.quoteFn(ctx, base, quote)
	}

	return nil, false
}
