package ingest

import (
	"context"
	"time"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/storage/types"
)

type (
	fetchDelegate     func(context.Context) ([]*types.PriceSnapshot, error)
	aggregateDelegate func(context.Context, *aggregate.Request) *types.AggregationResult
)

type mockJob struct {
	fetchFn  fetchDelegate
	name     string
	interval time.Duration
}

func (m *mockJob) Name() string {
	return m.name
}

func (m *mockJob) Interval() time.Duration {
	return m.interval
}

func (m *mockJob) Fetch(ctx context.Context) ([]*types.PriceSnapshot, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}

type mockPricer struct {
	aggregateFn aggregateDelegate
}

func (m *mockPricer) Aggregate(ctx context.Context, req *aggregate.Request) *types.AggregationResult {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, req)
	}

	return &types.AggregationResult{Status: types.StatusUnresolved}
}
