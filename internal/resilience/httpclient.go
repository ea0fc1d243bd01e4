package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPClient performs outbound GETs with per-attempt timeouts, retries on
// transport errors and 5xx responses, and a circuit breaker around each attempt.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Timeout     time.Duration
	MaxBody     int64
}

// Get fetches url and returns the response body.
func (cl HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	var body []byte
	attempt := func(ctx context.Context) error {
		data, err := cl.getOnce(ctx, url)
		if err != nil {
			return err
		}
		body = data
		return nil
	}
	call := attempt
	if cl.Breaker != nil {
		call = func(ctx context.Context) error { return cl.Breaker.Execute(ctx, attempt) }
	}
	if err := Retry(ctx, cl.MaxAttempts, cl.BaseBackoff, cl.Jitter, retryable, call); err != nil {
		return nil, err
	}
	return body, nil
}

func (cl HTTPClient) getOnce(ctx context.Context, url string) ([]byte, error) {
	if cl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := cl.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	limit := cl.MaxBody
	if limit <= 0 {
		limit = 10 << 20
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func retryable(err error) bool {
	if errors.Is(err, ErrOpenCircuit) || errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
	}
	return true
}
