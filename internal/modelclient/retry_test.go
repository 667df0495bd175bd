package modelclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codexrun/agentcore/internal/observability"
)

type flakyClient struct {
	name       string
	failures   int
	calls      int
	err        error
	finalEvent StreamEvent
}

func (f *flakyClient) Name() string    { return f.name }
func (f *flakyClient) Models() []Model { return nil }

func (f *flakyClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	ch := make(chan StreamEvent, 1)
	ch <- f.finalEvent
	close(ch)
	return ch, nil
}

func testTracer(t *testing.T) *observability.Tracer {
	t.Helper()
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "modelclient-test"})
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return tracer
}

func TestStreamWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	client := &flakyClient{
		name:     "anthropic",
		failures: 2,
		err:      errors.New("503 service unavailable"),
		finalEvent: StreamEvent{Kind: EventKindComplete, InputTokens: 10, OutputTokens: 5},
	}

	cfg := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 5}
	events, err := StreamWithRetry(context.Background(), client, CompletionRequest{Model: "claude-sonnet-4-20250514"}, cfg, testTracer(t))
	if err != nil {
		t.Fatalf("StreamWithRetry() error = %v", err)
	}

	var got StreamEvent
	for evt := range events {
		got = evt
	}
	if got.Kind != EventKindComplete {
		t.Errorf("final event kind = %q, want %q", got.Kind, EventKindComplete)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestStreamWithRetryStopsOnNonRetryableError(t *testing.T) {
	client := &flakyClient{name: "openai", failures: 1, err: errors.New("unauthorized")}

	cfg := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 5}
	_, err := StreamWithRetry(context.Background(), client, CompletionRequest{}, cfg, testTracer(t))
	if err == nil {
		t.Fatal("expected error for non-retryable failure")
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (should not retry auth errors)", client.calls)
	}
}

func TestStreamWithRetryExhaustsAttempts(t *testing.T) {
	client := &flakyClient{name: "google", failures: 10, err: errors.New("500 internal server error")}

	cfg := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 3}
	_, err := StreamWithRetry(context.Background(), client, CompletionRequest{}, cfg, testTracer(t))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestRetryConfigDelayForAttemptBounded(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 5}
	for attempt := 0; attempt < 10; attempt++ {
		d := cfg.delayForAttempt(attempt)
		if d > cfg.MaxDelay+cfg.MaxDelay/10 {
			t.Errorf("delayForAttempt(%d) = %v, exceeds MaxDelay bound", attempt, d)
		}
		if d < 0 {
			t.Errorf("delayForAttempt(%d) = %v, must not be negative", attempt, d)
		}
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.InitialDelay != 200*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 200ms", cfg.InitialDelay)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
}
