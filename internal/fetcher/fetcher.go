// Package fetcher performs bounded-retry HTTP GETs against public exchange APIs.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 10 * time.Second
	DefaultBaseDelay  = time.Second

	userAgent = "funding-monitor-go/1.0"

	// maxBodyBytes bounds how much of a response is read into memory.
	maxBodyBytes = 32 << 20
	// maxErrorBody bounds the body excerpt kept on StatusError.
	maxErrorBody = 512
)

// Config controls retries for a Client.
type Config struct {
	MaxRetries int
	Timeout    time.Duration
	BaseDelay  time.Duration
}

// Client retries failed GETs with exponential backoff: the wait after attempt
// n is BaseDelay * 2^n. It has no circuit breaker; every call starts fresh.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// New builds a Client. Zero fields in cfg take the package defaults.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		http:   &http.Client{Transport: http.DefaultTransport},
		cfg:    cfg,
		logger: logger.With("component", "fetcher"),
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Config returns the effective retry settings.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * c.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.BaseDelay << uint(c.cfg.MaxRetries+1)
	return b
}

// Fetch GETs url and returns the body of the first 2xx response. After
// MaxRetries failed attempts it returns a *FetchError wrapping the last cause.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	attempts := 0
	operation := func() ([]byte, error) {
		attempts++
		return c.attempt(ctx, url, headers)
	}

	notify := func(err error, next time.Duration) {
		c.logger.Debug("Fetch attempt failed, retrying",
			"url", url,
			"attempt", attempts,
			"next_delay", next.String(),
			"error", err.Error(),
		)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, &FetchError{URL: url, Attempts: attempts, Err: err}
	}
	return body, nil
}

// FetchJSON fetches url and decodes the body into v. A decode failure is
// not retried.
func (c *Client) FetchJSON(ctx context.Context, url string, headers map[string]string, v interface{}) error {
	body, err := c.Fetch(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, c.cfg.Timeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := body
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	return body, nil
}
