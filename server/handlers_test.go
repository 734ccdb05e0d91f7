package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/config"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/storage/mock"
	"github.com/sig-0/cardprice/storage/types"
)

func newTestServer(pricer Pricer, storage *mock.Storage) *Server {
	return &Server{
		logger:  noopLogger,
		config:  config.DefaultConfig(),
		pricer:  pricer,
		storage: storage,
		catalog: catalog.NewMemory(),
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	return resp.Error
}

func TestHandlers_Quote(t *testing.T) {
	t.Parallel()

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()

		var called bool

		pricer := &mockPricer{
			aggregateFn: func(_ context.Context, _ *aggregate.Request) *types.AggregationResult {
				called = true

				return nil
			},
		}

		s := newTestServer(pricer, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/quote?number=4/102", http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errMissingName.Error(), decodeError(t, w))
		assert.False(t, called)
	})

	t.Run("invalid number", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/quote?name=Charizard&number=x/102", http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid currency", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/quote?name=Charizard&currency=R$", http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid save", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/quote?name=Charizard&save=maybe", http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errInvalidSave.Error(), decodeError(t, w))
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var captured *aggregate.Request

		pricer := &mockPricer{
			aggregateFn: func(ctx context.Context, req *aggregate.Request) *types.AggregationResult {
				captured = req

				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)

				return &types.AggregationResult{
					Card:     req.Card,
					Currency: currencies.USD,
					Status:   types.StatusResolved,
					Price:    312.5,
				}
			},
		}

		s := newTestServer(pricer, &mock.Storage{})

		url := "/v1/quote?name=Alolan+Vulpix&name_local=Vulpix+de+Alola&set=Hidden+Fates" +
			"&number=12%2F68&currency=usd&sources=eBay,+ligapokemon&card_id=sm115-12&save=true"

		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, captured)

		assert.Equal(t, "Alolan Vulpix", captured.Card.Name)
		assert.Equal(t, "Vulpix de Alola", captured.Card.LocalizedName)
		assert.Equal(t, "Hidden Fates", captured.Card.Set)
		assert.Equal(t, types.PrintedNumber{Numerator: 12, Denominator: 68}, captured.Card.Number)
		assert.Equal(t, currencies.USD, captured.Currency)
		assert.Equal(t, []types.Source{"ebay", "ligapokemon"}, captured.Sources)
		assert.Equal(t, "sm115-12", captured.CardID)
		assert.True(t, captured.Save)

		var res types.AggregationResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))

		assert.Equal(t, types.StatusResolved, res.Status)
		assert.Equal(t, 312.5, res.Price)
	})

	t.Run("unresolved is not an error", func(t *testing.T) {
		t.Parallel()

		pricer := &mockPricer{
			aggregateFn: func(_ context.Context, _ *aggregate.Request) *types.AggregationResult {
				return &types.AggregationResult{
					Status: types.StatusUnresolved,
					Reason: "no relevant results",
				}
			},
		}

		s := newTestServer(pricer, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/quote?name=Missingno", http.NoBody)
		w := httptest.NewRecorder()
		s.Quote(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var res types.AggregationResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))

		assert.Equal(t, types.StatusUnresolved, res.Status)
		assert.Equal(t, "no relevant results", res.Reason)
	})
}

func TestHandlers_CardQuote(t *testing.T) {
	t.Parallel()

	cards := catalog.NewMemory()
	require.NoError(t, cards.Add("base1-4", types.CardIdentity{
		Name:   "Charizard",
		Set:    "Base Set",
		Number: types.PrintedNumber{Numerator: 4, Denominator: 102},
	}))

	t.Run("unknown card", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})
		s.catalog = cards

		req := httptest.NewRequest(http.MethodGet, "/v1/cards/missing/quote", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "missing"})

		w := httptest.NewRecorder()
		s.CardQuote(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("catalog card is saved by default", func(t *testing.T) {
		t.Parallel()

		var captured *aggregate.Request

		pricer := &mockPricer{
			aggregateFn: func(_ context.Context, req *aggregate.Request) *types.AggregationResult {
				captured = req

				return &types.AggregationResult{Status: types.StatusResolved, Price: 1}
			},
		}

		s := newTestServer(pricer, &mock.Storage{})
		s.catalog = cards

		req := httptest.NewRequest(http.MethodGet, "/v1/cards/base1-4/quote", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.CardQuote(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, captured)

		assert.Equal(t, "base1-4", captured.CardID)
		assert.Equal(t, "Charizard", captured.Card.Name)
		assert.True(t, captured.Save)
		assert.Empty(t, captured.Currency)
	})

	t.Run("save can be disabled", func(t *testing.T) {
		t.Parallel()

		var captured *aggregate.Request

		pricer := &mockPricer{
			aggregateFn: func(_ context.Context, req *aggregate.Request) *types.AggregationResult {
				captured = req

				return &types.AggregationResult{Status: types.StatusResolved, Price: 1}
			},
		}

		s := newTestServer(pricer, &mock.Storage{})
		s.catalog = cards

		req := httptest.NewRequest(http.MethodGet, "/v1/cards/base1-4/quote?save=false", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.CardQuote(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, captured.Save)
	})
}

func TestHandlers_History(t *testing.T) {
	t.Parallel()

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})

		req := httptest.NewRequest(http.MethodGet, "/v1/cards/base1-4/history?limit=-1", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.History(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errInvalidLimit.Error(), decodeError(t, w))
	})

	t.Run("inverted time range", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})

		url := "/v1/cards/base1-4/history?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z"
		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.History(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		storage := &mock.Storage{
			SnapshotsFn: func(
				_ context.Context,
				_ *types.SnapshotQuery,
			) (*types.Page[*types.PriceSnapshot], error) {
				return nil, errors.New("boom")
			},
		}

		s := newTestServer(&mockPricer{}, storage)

		req := httptest.NewRequest(http.MethodGet, "/v1/cards/base1-4/history", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.History(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var captured *types.SnapshotQuery

		capturedAt := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)

		storage := &mock.Storage{
			SnapshotsFn: func(
				_ context.Context,
				query *types.SnapshotQuery,
			) (*types.Page[*types.PriceSnapshot], error) {
				captured = query

				return &types.Page[*types.PriceSnapshot]{
					Results: []*types.PriceSnapshot{{
						ID:         "a",
						CardID:     "base1-4",
						Price:      1200,
						Currency:   currencies.BRL,
						Source:     types.SnapshotSourceAggregate,
						CapturedAt: capturedAt,
					}},
					Total: 1,
				}, nil
			},
		}

		s := newTestServer(&mockPricer{}, storage)

		url := "/v1/cards/base1-4/history?source=aggregate:median" +
			"&from=2026-01-01T00:00:00Z&limit=20&offset=2"

		req := httptest.NewRequest(http.MethodGet, url, http.NoBody)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.History(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, captured)

		assert.Equal(t, "base1-4", captured.CardID)
		require.NotNil(t, captured.Source)
		assert.Equal(t, types.SnapshotSourceAggregate, *captured.Source)
		require.NotNil(t, captured.From)
		assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), *captured.From)
		assert.Nil(t, captured.To)
		assert.EqualValues(t, 20, captured.Limit)
		assert.EqualValues(t, 2, captured.Offset)

		var page types.Page[*types.PriceSnapshot]
		require.NoError(t, json.NewDecoder(w.Body).Decode(&page))

		require.Len(t, page.Results, 1)
		assert.Equal(t, 1200.0, page.Results[0].Price)
		assert.Equal(t, capturedAt, page.Results[0].CapturedAt)
	})
}

func TestHandlers_RecordPrice(t *testing.T) {
	t.Parallel()

	testTable := []struct {
		name string
		body string
	}{
		{name: "malformed body", body: `{"price":`},
		{name: "unknown field", body: `{"price": 10, "currency": "BRL", "note": "x"}`},
		{name: "zero price", body: `{"price": 0, "currency": "BRL"}`},
		{name: "negative price", body: `{"price": -5, "currency": "BRL"}`},
		{name: "invalid currency", body: `{"price": 10, "currency": "R$"}`},
		{name: "reserved source", body: `{"price": 10, "currency": "BRL", "source": "aggregate:median"}`},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var called bool

			storage := &mock.Storage{
				AppendSnapshotFn: func(_ context.Context, _ *types.PriceSnapshot) error {
					called = true

					return nil
				},
			}

			s := newTestServer(&mockPricer{}, storage)

			req := httptest.NewRequest(
				http.MethodPost,
				"/v1/cards/base1-4/history",
				strings.NewReader(testCase.body),
			)
			req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

			w := httptest.NewRecorder()
			s.RecordPrice(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, called)
		})
	}

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		storage := &mock.Storage{
			AppendSnapshotFn: func(_ context.Context, _ *types.PriceSnapshot) error {
				return errors.New("boom")
			},
		}

		s := newTestServer(&mockPricer{}, storage)

		req := httptest.NewRequest(
			http.MethodPost,
			"/v1/cards/base1-4/history",
			strings.NewReader(`{"price": 10, "currency": "BRL"}`),
		)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.RecordPrice(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var saved *types.PriceSnapshot

		storage := &mock.Storage{
			AppendSnapshotFn: func(_ context.Context, snapshot *types.PriceSnapshot) error {
				saved = snapshot

				return nil
			},
		}

		s := newTestServer(&mockPricer{}, storage)

		req := httptest.NewRequest(
			http.MethodPost,
			"/v1/cards/base1-4/history",
			strings.NewReader(`{"price": 950.5, "currency": "brl", "captured_at": "2026-01-10T12:00:00-03:00"}`),
		)
		req = withRouteParams(t, req, map[string]string{"id": "base1-4"})

		w := httptest.NewRecorder()
		s.RecordPrice(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, saved)

		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "base1-4", saved.CardID)
		assert.Equal(t, 950.5, saved.Price)
		assert.Equal(t, currencies.BRL, saved.Currency)
		assert.Equal(t, types.SnapshotSourceManual, saved.Source)
		assert.Equal(t, time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC), saved.CapturedAt)
	})
}

func TestHandlers_Rate(t *testing.T) {
	t.Parallel()

	rates := &mockRates{
		quoteFn: func(_ context.Context, base, quote types.Currency) (*types.ExchangeRate, bool) {
			if base != currencies.USD || quote != currencies.BRL {
				return nil, false
			}

			return &types.ExchangeRate{
				Base:   base,
				Target: quote,
				Rate:   5.4,
				Source: "open.er-api",
			}, true
		},
	}

	t.Run("invalid currency", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})
		s.rates = rates

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/US/BRL", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"base": "US", "quote": "BRL"})

		w := httptest.NewRecorder()
		s.Rate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unavailable rate", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})
		s.rates = rates

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/JPY/BRL", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"base": "JPY", "quote": "BRL"})

		w := httptest.NewRecorder()
		s.Rate(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&mockPricer{}, &mock.Storage{})
		s.rates = rates

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/usd/brl", http.NoBody)
		req = withRouteParams(t, req, map[string]string{"base": "usd", "quote": "brl"})

		w := httptest.NewRecorder()
		s.Rate(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var rate types.ExchangeRate
		require.NoError(t, json.NewDecoder(w.Body).Decode(&rate))

		assert.Equal(t, 5.4, rate.Rate)
		assert.Equal(t, currencies.USD, rate.Base)
	})
}

func TestHandlers_Sources(t *testing.T) {
	t.Parallel()

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		storage := &mock.Storage{
			ListSourcesFn: func(_ context.Context) ([]string, error) {
				return nil, errors.New("boom")
			},
		}

		s := newTestServer(&mockPricer{}, storage)

		w := httptest.NewRecorder()
		s.Sources(w, httptest.NewRequest(http.MethodGet, "/v1/sources", http.NoBody))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		pricer := &mockPricer{
			sourcesFn: func() []types.Source {
				return []types.Source{"ebay", "shopee"}
			},
		}

		storage := &mock.Storage{
			ListSourcesFn: func(_ context.Context) ([]string, error) {
				return []string{types.SnapshotSourceAggregate}, nil
			},
		}

		s := newTestServer(pricer, storage)

		w := httptest.NewRecorder()
		s.Sources(w, httptest.NewRequest(http.MethodGet, "/v1/sources", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)

		var resp SourcesResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		assert.Equal(t, []types.Source{"ebay", "shopee"}, resp.Results)
		assert.Equal(t, []string{types.SnapshotSourceAggregate}, resp.History)
	})
}

func withRouteParams(t *testing.T, req *http.Request, params map[string]string) *http.Request {
	t.Helper()

	rctx := chi.NewRouteContext()

	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}

	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
