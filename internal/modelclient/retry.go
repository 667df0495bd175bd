package modelclient

import (
	"context"
	"math/rand"
	"time"

	"github.com/codexrun/agentcore/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// RetryConfig controls the backoff applied around a single Client.Stream
// call per spec §7: initial delay 200ms, doubling each attempt, ±10%
// jitter, bounded by MaxDelay, aborting the turn once MaxAttempts is
// exhausted. Grounded on the teacher's providers/anthropic.go retry loop
// (retryDelay * 2^attempt) and internal/agent/executor.go's ExecutorConfig
// RetryBackoff/MaxRetryBackoff fields.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryConfig matches spec §7's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
	}
}

func (c RetryConfig) delayForAttempt(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
			break
		}
	}
	jitter := time.Duration(float64(delay) * (rand.Float64()*0.2 - 0.1))
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return delay
}

// StreamWithRetry calls client.Stream, retrying on retryable ProviderErrors
// per RetryConfig, and instruments every attempt with a codex.api_request
// span and every forwarded event with a codex.sse_event span (spec §7's
// retry-observability requirement). It returns the event channel from the
// attempt that succeeded (or the final failed attempt's single error
// event, if retries are exhausted).
func StreamWithRetry(ctx context.Context, client Client, req CompletionRequest, cfg RetryConfig, tracer *observability.Tracer) (<-chan StreamEvent, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attemptCtx, span := tracer.TraceAPIRequest(ctx, client.Name(), req.Model, attempt)

		if attempt > 0 {
			delay := cfg.delayForAttempt(attempt - 1)
			select {
			case <-ctx.Done():
				span.End()
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		events, err := client.Stream(attemptCtx, req)
		if err != nil {
			tracer.RecordError(span, err)
			span.End()
			lastErr = err
			if !IsRetryable(err) {
				return nil, err
			}
			continue
		}

		out := make(chan StreamEvent, 8)
		go forwardTracedStream(attemptCtx, events, out, tracer, span)
		return out, nil
	}

	return nil, lastErr
}

// forwardTracedStream relays events from src to dst, opening a
// codex.sse_event span per event, and ends the enclosing request span once
// the source stream closes.
func forwardTracedStream(ctx context.Context, src <-chan StreamEvent, dst chan<- StreamEvent, tracer *observability.Tracer, requestSpan trace.Span) {
	defer close(dst)
	defer requestSpan.End()
	for evt := range src {
		_, sseSpan := tracer.TraceSSEEvent(ctx, string(evt.Kind))
		if evt.Kind == EventKindError {
			tracer.RecordError(requestSpan, evt.Err)
		}
		dst <- evt
		sseSpan.End()
	}
}
