package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultUserAgent  = "court_watch/1.0 (+availability poller)"

	maxBodyBytes = 64 << 20
)

// StatusError is a non-2xx response from the feed endpoint.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed responded %d: %s", e.StatusCode, e.Status)
}

// HTTPFetcher GETs the feed with a fixed number of attempts and a fixed delay
// between them. Every attempt has its own timeout.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	attempts   int
	delay      time.Duration
	timeout    time.Duration
	userAgent  string
	headers    map[string]string
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithAttempts sets the total number of attempts (minimum 1).
func WithAttempts(n int) Option {
	return func(f *HTTPFetcher) {
		if n < 1 {
			n = 1
		}
		f.attempts = n
	}
}

// WithRetryDelay sets the fixed pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d < 0 {
			d = 0
		}
		f.delay = d
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if strings.TrimSpace(ua) != "" {
			f.userAgent = ua
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(f *HTTPFetcher) {
		f.headers[key] = value
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *HTTPFetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// NewHTTPFetcher creates a fetcher for url.
func NewHTTPFetcher(url string, opts ...Option) (*HTTPFetcher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("feed url is required")
	}
	f := &HTTPFetcher{
		url:        url,
		httpClient: &http.Client{},
		attempts:   DefaultAttempts,
		delay:      DefaultRetryDelay,
		timeout:    DefaultTimeout,
		userAgent:  DefaultUserAgent,
		headers:    map[string]string{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch retrieves and decodes the feed. Transport errors, non-2xx responses
// and undecodable bodies all count as failed attempts.
func (f *HTTPFetcher) Fetch(ctx context.Context) (model.Dataset, error) {
	log := logger.WithComponent("feed")
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			log.Debugf("retrying feed request in %v (attempt %d/%d)", f.delay, attempt, f.attempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.delay):
			}
		}

		ds, err := f.fetchOnce(ctx)
		if err == nil {
			log.Debugf("fetched %d slots on attempt %d", len(ds), attempt)
			return ds, nil
		}
		lastErr = err
		log.Warnf("feed attempt %d/%d failed: %v", attempt, f.attempts, err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, f.attempts, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context) (model.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	ds, stats, err := Decode(body)
	if err != nil {
		return nil, err
	}
	logStats(stats)
	return ds, nil
}

func logStats(stats DecodeStats) {
	if stats.Skipped == 0 && stats.NormalisedCounts == 0 {
		return
	}
	logger.WithComponent("feed").Warnf("feed data quality: %d records, %d skipped, %d unusable court counts treated as 0",
		stats.Records, stats.Skipped, stats.NormalisedCounts)
}
