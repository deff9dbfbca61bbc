package sight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout bounds one observation fetch request
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// maxObservationBytes limits an observation document to 10 MB
	maxObservationBytes = 10 << 20
)

// FetchOption configures FetchObservations
type FetchOption func(*fetcher)

// WithTimeout sets the per-request timeout of the default client
func WithTimeout(d time.Duration) FetchOption {
	return func(f *fetcher) { f.timeout = d }
}

// WithMaxRetries sets the number of attempts; values below 1 mean one
func WithMaxRetries(n int) FetchOption {
	return func(f *fetcher) { f.attempts = n }
}

// WithBaseBackoff sets the delay before the second attempt; it doubles after each failure
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(f *fetcher) { f.backoff = d }
}

// WithHTTPClient replaces the default client; WithTimeout is ignored then
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *fetcher) { f.client = client }
}

// statusError is a non-200 response from an observation source
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

// retryable reports whether another attempt could succeed. Client errors
// other than timeouts and rate limiting will not change on retry.
func (e *statusError) retryable() bool {
	switch {
	case e.code == http.StatusRequestTimeout, e.code == http.StatusTooManyRequests:
		return true
	case e.code >= 400 && e.code < 500:
		return false
	}
	return true
}

type fetcher struct {
	client   *http.Client
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// delay returns the wait before attempt n (n >= 1 is the first retry)
func (f *fetcher) delay(n int) time.Duration {
	return f.backoff << (n - 1)
}

// FetchObservations downloads an observation set from sourceURL. Transport
// errors and 5xx responses are retried with exponential backoff; a
// document that fails to parse is returned immediately.
func FetchObservations(ctx context.Context, sourceURL string, opts ...FetchOption) (*ObservationSet, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("fetch observations: URL is empty")
	}

	f := &fetcher{
		timeout:  DefaultFetchTimeout,
		attempts: DefaultMaxRetries,
		backoff:  defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.attempts = max(f.attempts, 1)
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}

	var lastErr error
	for n := range f.attempts {
		if n > 0 {
			timer := time.NewTimer(f.delay(n))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("fetch observations: %w", ctx.Err())
			case <-timer.C:
			}
		}

		body, err := f.get(ctx, sourceURL)
		if err != nil {
			lastErr = err
			var se *statusError
			if errors.As(err, &se) && !se.retryable() {
				return nil, fmt.Errorf("fetch observations: %w", err)
			}
			continue
		}

		set, err := ParseObservations(body)
		if err != nil {
			return nil, fmt.Errorf("fetch observations from %s: %w", sourceURL, err)
		}
		return set, nil
	}

	return nil, fmt.Errorf("fetch observations: all %d attempts failed: %w", f.attempts, lastErr)
}

func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: url, code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObservationBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}
