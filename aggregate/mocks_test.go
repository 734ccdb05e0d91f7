package aggregate

import (
	"context"

	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

type (
	searchDelegate func(context.Context, string) ([]*types.Listing, error)
	quoteDelegate  func(context.Context, types.Currency, types.Currency) (*types.ExchangeRate, bool)
	rateDelegate   func(context.Context, types.Currency, types.Currency) (float64, error)
)

type mockSource struct {
	searchFn searchDelegate
	id       types.Source
	profile  query.Profile
}

func (m *mockSource) ID() types.Source {
	return m.id
}

func (m *mockSource) Profile() query.Profile {
	return m.profile
}

func (m *mockSource) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}

	return nil, nil
}

type mockConverter struct {
	quoteFn quoteDelegate
}

func (m *mockConverter) Quote(
	ctx context.Context,
	base, quote types.Currency,
) (*types.ExchangeRate, bool) {
	if m.quoteFn != nil {
		return m.quoteFn(ctx, base, quote)
	}

	return nil, false
}

type mockRateProvider struct {
	rateFn rateDelegate
}

func (m *mockRateProvider) Name() string {
	return "mock"
}

func (m *mockRateProvider) Rate(ctx context.Context, base, quote types.Currency) (float64, error) {
	if m.rateFn != nil {
		return m.rateFn(ctx, base, quote)
	}

	return 0, nil
}
