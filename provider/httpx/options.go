package httpx

import "time"

type config struct {
	headers      map[string]string
	timeout      time.Duration
	retryWait    time.Duration
	retryMaxWait time.Duration
	minInterval  time.Duration
	retries      int
	poolSize     int
}

type Option func(c *config)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithRetries sets the retry count for GET requests
func WithRetries(n int) Option {
	return func(c *config) {
		c.retries = n
	}
}

// WithRetryWait sets the initial and maximum backoff between retries
func WithRetryWait(wait, maxWait time.Duration) Option {
	return func(c *config) {
		c.retryWait = wait
		c.retryMaxWait = maxWait
	}
}

// WithMinInterval enforces a minimum spacing between requests
func WithMinInterval(d time.Duration) Option {
	return func(c *config) {
		c.minInterval = d
	}
}

// WithHeader sets a default header on every request
func WithHeader(key, value string) Option {
	return func(c *config) {
		c.headers[key] = value
	}
}

// WithPoolSize sets the idle connection pool size
func WithPoolSize(n int) Option {
	return func(c *config) {
		c.poolSize = n
	}
}
