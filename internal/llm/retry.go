package llm

import (
	"context"
	"strings"
	"time"
)

// retryProvider wraps a Provider with exponential backoff on transient
// failures. Context cancellation and clearly non-retryable errors surface
// immediately.
type retryProvider struct {
	inner    Provider
	attempts int
}

// WithRetries decorates a provider with up to attempts tries per request.
// Backoff doubles per attempt starting at one second.
func WithRetries(p Provider, attempts int) Provider {
	if attempts < 1 {
		attempts = 1
	}
	return &retryProvider{inner: p, attempts: attempts}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		out, err := r.inner.Complete(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return "", err
		}
		backoff := time.Duration(1<<attempt) * time.Second
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	msg := err.Error()
	for _, s := range []string{"status 429", "status 500", "status 502", "status 503", "rate limit", "timeout", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
