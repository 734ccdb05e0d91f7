// Package httpx is the shared outbound HTTP client used by the marketplace
// adapters and the exchange rate providers
package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultRetries      = 3
	defaultRetryWait    = 600 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second
	defaultPoolSize     = 10
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrStatus is returned for non-2xx responses
var ErrStatus = errors.New("unexpected status code")

// StatusError carries the failing status code
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d (%s)", ErrStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Client is a retrying, rate limited HTTP client.
// A single instance is meant to be owned by one adapter
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
}

// New creates a new client
func New(opts ...Option) *Client {
	cfg := &config{
		timeout:      defaultTimeout,
		retries:      defaultRetries,
		retryWait:    defaultRetryWait,
		retryMaxWait: defaultRetryMaxWait,
		poolSize:     defaultPoolSize,
		headers: map[string]string{
			"User-Agent":      defaultUserAgent,
			"Accept-Language": "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = cfg.poolSize
	tr.MaxIdleConnsPerHost = cfg.poolSize

	rc := resty.New().
		SetTransport(tr).
		SetTimeout(cfg.timeout).
		SetHeaders(cfg.headers).
		SetRetryCount(cfg.retries).
		SetRetryWaitTime(cfg.retryWait).
		SetRetryMaxWaitTime(cfg.retryMaxWait).
		AddRetryCondition(shouldRetry)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.minInterval), 1)
	}

	return &Client{
		rc:      rc,
		limiter: limiter,
	}
}

// shouldRetry retries idempotent requests on throttling, server errors
// and transport failures
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return err != nil
	}

	if resp.Request.Method != http.MethodGet {
		return false
	}

	if ctxErr := resp.Request.Context().Err(); ctxErr != nil {
		return false
	}

	if err != nil {
		return true
	}

	code := resp.StatusCode()

	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Get executes a GET request and returns the response body
func (c *Client) Get(
	ctx context.Context,
	rawURL string,
	params url.Values,
	headers map[string]string,
) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetHeaders(headers).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("unable to execute GET request: %w", err)
	}

	if resp.IsError() {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode()}
	}

	return resp.Body(), nil
}

// Document executes a GET request and parses the HTML response
func (c *Client) Document(
	ctx context.Context,
	rawURL string,
	params url.Values,
) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL, params, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to construct query doc: %w", err)
	}

	return doc, nil
}

// PostForm executes a form POST with basic auth. POSTs are never retried
func (c *Client) PostForm(
	ctx context.Context,
	rawURL string,
	form map[string]string,
	username, password string,
) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetBasicAuth(username, password).
		SetFormData(form).
		Post(rawURL)
	if err != nil {
		return nil, fmt.Errorf("unable to execute POST request: %w", err)
	}

	if resp.IsError() {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode()}
	}

	return resp.Body(), nil
}
