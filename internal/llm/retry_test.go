package llm

import (
	"context"
	"errors"
	"testing"
)

type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) Name() string { return "flaky/test" }

func (f *flakyProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func TestWithRetriesRecovers(t *testing.T) {
	p := &flakyProvider{failures: 2, err: errors.New("API error (status 503): overloaded")}
	r := WithRetries(p, 3)

	out, err := r.Complete(context.Background(), "x", CompletionOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || p.calls != 3 {
		t.Errorf("got %q after %d calls", out, p.calls)
	}
}

func TestWithRetriesNonRetryable(t *testing.T) {
	p := &flakyProvider{failures: 5, err: errors.New("API error (status 400): bad request")}
	r := WithRetries(p, 3)

	if _, err := r.Complete(context.Background(), "x", CompletionOpts{}); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", p.calls)
	}
}
