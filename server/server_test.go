package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/config"
	"github.com/sig-0/cardprice/storage/mock"
	"github.com/sig-0/cardprice/storage/types"
)

func TestServer_New(t *testing.T) {
	t.Parallel()

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.ListenAddress = "localhost"

		s, err := New(&mockPricer{}, &mock.Storage{}, WithConfig(cfg))

		assert.Nil(t, s)
		assert.ErrorIs(t, err, config.ErrInvalidListenAddress)
	})

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()

		s, err := New(&mockPricer{}, &mock.Storage{})
		require.NoError(t, err)

		assert.NotNil(t, s.catalog)
		assert.Nil(t, s.rates)
	})
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	cards := catalog.NewMemory()
	require.NoError(t, cards.Add("base1-4", types.CardIdentity{Name: "Charizard"}))

	pricer := &mockPricer{
		aggregateFn: func(_ context.Context, req *aggregate.Request) *types.AggregationResult {
			return &types.AggregationResult{
				Card:   req.Card,
				CardID: req.CardID,
				Status: types.StatusResolved,
				Price:  100,
			}
		},
	}

	newServer := func(t *testing.T, opts ...Option) *httptest.Server {
		t.Helper()

		s, err := New(pricer, &mock.Storage{}, append([]Option{WithCatalog(cards)}, opts...)...)
		require.NoError(t, err)

		srv := httptest.NewServer(s)
		t.Cleanup(srv.Close)

		return srv
	}

	get := func(t *testing.T, url string) *http.Response {
		t.Helper()

		resp, err := http.Get(url) //nolint:noctx // test request
		require.NoError(t, err)

		t.Cleanup(func() {
			_ = resp.Body.Close()
		})

		return resp
	}

	t.Run("health", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)

		assert.Equal(t, http.StatusOK, get(t, srv.URL+"/health").StatusCode)
	})

	t.Run("openapi", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)

		resp := get(t, srv.URL+"/openapi.yaml")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/yaml")
	})

	t.Run("card quote", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)

		assert.Equal(t, http.StatusOK, get(t, srv.URL+"/v1/cards/base1-4/quote?save=false").StatusCode)
		assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/v1/cards/base1-5/quote").StatusCode)
	})

	t.Run("rates are not exposed without a converter", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)

		assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/v1/rates/USD/BRL").StatusCode)
	})

	t.Run("rates", func(t *testing.T) {
		t.Parallel()

		rates := &mockRates{
			quoteFn: func(_ context.Context, base, quote types.Currency) (*types.ExchangeRate, bool) {
				return &types.ExchangeRate{Base: base, Target: quote, Rate: 5}, true
			},
		}

		srv := newServer(t, WithRates(rates))

		assert.Equal(t, http.StatusOK, get(t, srv.URL+"/v1/rates/USD/BRL").StatusCode)
	})

	t.Run("custom routes", func(t *testing.T) {
		t.Parallel()

		s, err := New(pricer, &mock.Storage{})
		require.NoError(t, err)

		s.Routes(func(router chi.Router) {
			router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
		})

		w := httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}
