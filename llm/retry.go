package llm

import (
	"context"
	"time"
)

// retryClient re-issues failed completions with exponential backoff.
type retryClient struct {
	base     Client
	attempts int
	backoff  time.Duration
}

// WithRetry wraps a client so that failed calls are retried up to attempts
// times, doubling the backoff between tries. Context cancellation aborts the
// retry loop immediately.
func WithRetry(base Client, attempts int, backoff time.Duration) Client {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retryClient{base: base, attempts: attempts, backoff: backoff}
}

func (r *retryClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	wait := r.backoff
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		resp, err := r.base.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// timeoutClient bounds each completion call with its own deadline.
type timeoutClient struct {
	base Client
	d    time.Duration
}

// WithTimeout wraps a client so every call runs under a per-call deadline.
func WithTimeout(base Client, d time.Duration) Client {
	if d <= 0 {
		return base
	}
	return &timeoutClient{base: base, d: d}
}

func (t *timeoutClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.base.Complete(ctx, req)
}
