package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 10 << 20

// RetryPolicy bounds retries of a single call. Delay before attempt n
// (n >= 2) is BaseDelay x (n-1).
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
}

// DefaultRetry is two retries with a 500ms linear base.
var DefaultRetry = RetryPolicy{Retries: 2, BaseDelay: 500 * time.Millisecond}

// NoRetry sends each call exactly once.
var NoRetry = RetryPolicy{Retries: 0, BaseDelay: DefaultRetry.BaseDelay}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// post sends body to url, retrying 5xx and transport failures. 3xx and 4xx
// come back immediately as *StatusError. The body of the successful
// attempt is returned undecoded so a decoding problem cannot trigger a
// retry of an action the engine already applied.
func (c *Client) post(ctx context.Context, action, url string, body []byte) ([]byte, error) {
	attempts := c.retry.Retries + 1
	var last error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.BaseDelay * time.Duration(attempt-1)
			c.logger.Info("retrying upstream call",
				zap.String("action", action),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(last),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: %w", action, err)
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		c.metrics.attempt(ctx, action)
		data, err := c.exchange(ctx, url, body)
		if err == nil {
			return data, nil
		}
		last = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
		if errors.Is(err, ErrMalformedResponse) {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", action, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%s: %w", action, &RetryExhaustedError{Attempts: attempts, Last: last})
}

// exchange performs one POST.
func (c *Client) exchange(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("X-Session-Id", c.sessionID)
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	oversized := int64(len(data)) > c.maxResponse
	if oversized {
		data = data[:c.maxResponse]
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if oversized {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, c.maxResponse)
	}
	return data, nil
}
