package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig controls retries of transient failures.
type RetryConfig struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap for the exponential backoff
}

// DefaultRetryConfig returns 3 attempts with 250ms/500ms backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

// doWithRetry sends the request built by newReq, retrying network errors and 5xx.
// newReq is called per attempt so request bodies can be replayed.
// Non-retriable responses (including 4xx) are returned to the caller as is.
func doWithRetry(ctx context.Context, hc *http.Client, newReq func() (*http.Request, error), cfg RetryConfig) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := hc.Do(req)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay = min(delay*2, cfg.MaxDelay)
			}
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, errors.Join(ErrExhausted, lastErr))
}

// ErrExhausted marks a request that kept failing transiently.
var ErrExhausted = errors.New("retries exhausted")
