package llm

import (
	"context"
	"log"
	"time"
)

// RetryProvider retries transient failures with exponential backoff before
// surfacing the error. Auth and invalid-input errors are never retried.
type RetryProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryProvider wraps a provider with bounded retries.
func NewRetryProvider(inner Provider, maxRetries int) *RetryProvider {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

func (r *RetryProvider) Name() string         { return r.inner.Name() }
func (r *RetryProvider) DefaultModel() string { return r.inner.DefaultModel() }

func (r *RetryProvider) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay << (attempt - 1)
			log.Printf("[llm] retrying %s after %v (attempt %d/%d): %v",
				r.inner.Name(), delay, attempt, r.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
