// Package observability provides metrics, structured logging, and distributed
// tracing for the agent runtime: ConversationManager, Session, TurnRuntime,
// ModelClient, ToolRouter, and SandboxExecutor all report through this
// package rather than rolling their own logging or instrumentation.
//
// # Metrics
//
// Metrics are implemented on top of Prometheus and track model request
// latency/token usage/cost, tool execution counts and duration, error rates
// by component, and active session counts:
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	// ... call the model ...
//	metrics.RecordModelRequest("anthropic", "claude-sonnet-4-20250514", "success",
//		time.Since(start).Seconds(), promptTokens, completionTokens)
//
// # Logging
//
// Logging wraps log/slog with context-aware fields (request ID, session ID)
// and redacts API keys, bearer tokens, and other secrets before they ever
// reach a log line:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	logger.Info(ctx, "turn completed", "session_id", sessionID, "tool_calls", n)
//
// # Tracing
//
// Tracing wraps OpenTelemetry. Every ModelClient attempt opens a
// codex.api_request span (provider, model, attempt), and every streamed
// server-sent event opens a codex.sse_event span — this satisfies the
// runtime's requirement that retries be observable, not just retried:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//		ServiceName: "codexcore",
//		Endpoint:    os.Getenv("OTEL_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceAPIRequest(ctx, "anthropic", model, attempt)
//	defer span.End()
package observability
