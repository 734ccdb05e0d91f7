package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(opts ...Option) *Client {
	return New(append([]Option{
		WithTimeout(2 * time.Second),
		WithRetryWait(time.Millisecond, 5*time.Millisecond),
	}, opts...)...)
}

func TestClient_Get(t *testing.T) {
	t.Parallel()

	t.Run("retries on server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)

				return
			}

			_, _ = w.Write([]byte(r.URL.Query().Get("q")))
		}))
		defer srv.Close()

		body, err := newTestClient().Get(
			context.Background(),
			srv.URL,
			url.Values{"q": []string{"charizard"}},
			nil,
		)
		require.NoError(t, err)

		assert.Equal(t, "charizard", string(body))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("retries exhausted", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newTestClient(WithRetries(2)).Get(context.Background(), srv.URL, nil, nil)

		var statusErr *StatusError

		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
		assert.ErrorIs(t, err, ErrStatus)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestClient().Get(context.Background(), srv.URL, nil, nil)

		assert.ErrorIs(t, err, ErrStatus)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("request headers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(r.Header.Get("X-Test") + "|" + r.Header.Get("X-Default")))
		}))
		defer srv.Close()

		body, err := newTestClient(WithHeader("X-Default", "d")).Get(
			context.Background(),
			srv.URL,
			nil,
			map[string]string{"X-Test": "t"},
		)
		require.NoError(t, err)

		assert.Equal(t, "t|d", string(body))
	})

	t.Run("minimum spacing", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		var (
			c     = newTestClient(WithMinInterval(50 * time.Millisecond))
			start = time.Now()
		)

		for range 3 {
			_, err := c.Get(context.Background(), srv.URL, nil, nil)
			require.NoError(t, err)
		}

		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient().Get(ctx, "http://127.0.0.1:1", nil, nil)

		assert.Error(t, err)
	})
}

func TestClient_Document(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1 class="title">Charizard</h1></body></html>`))
	}))
	defer srv.Close()

	doc, err := newTestClient().Document(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, "Charizard", doc.Find("h1.title").Text())
}

func TestClient_PostForm(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_ = r.ParseForm()
		_, _ = w.Write([]byte(r.PostForm.Get("grant_type")))
	}))
	defer srv.Close()

	c := newTestClient()

	body, err := c.PostForm(
		context.Background(),
		srv.URL,
		map[string]string{"grant_type": "client_credentials"},
		"id",
		"secret",
	)
	require.NoError(t, err)
	assert.Equal(t, "client_credentials", string(body))

	_, err = c.PostForm(context.Background(), srv.URL, nil, "id", "wrong")
	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(2), calls.Load())
}
