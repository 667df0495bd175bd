package modelclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailoverReason categorizes why a provider request failed, grounded on the
// teacher's internal/agent/providers/errors.go FailoverReason. Failover
// across providers is out of scope for this runtime (spec has one
// configured ModelFamily per session); only the retry classification
// (IsRetryable) survives the generalization.
type FailoverReason string

const (
	ReasonRateLimit       FailoverReason = "rate_limit"
	ReasonAuth            FailoverReason = "auth"
	ReasonTimeout         FailoverReason = "timeout"
	ReasonServerError     FailoverReason = "server_error"
	ReasonInvalidRequest  FailoverReason = "invalid_request"
	ReasonModelUnavailable FailoverReason = "model_unavailable"
	ReasonContentFilter   FailoverReason = "content_filter"
	ReasonUnknown         FailoverReason = "unknown"
)

// IsRetryable reports whether the reason suggests a retry may succeed. Per
// spec §7, an UnexpectedHttpStatus must never be retried: ReasonAuth,
// ReasonInvalidRequest, ReasonModelUnavailable, and ReasonContentFilter are
// all unexpected-status classes and return false here.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonTimeout, ReasonServerError:
		return true
	default:
		return false
	}
}

// ProviderError is a structured error from a model provider, carrying the
// context retry/backoff and tracing need. Grounded on the teacher's
// providers/errors.go ProviderError, trimmed of the RequestID/Code-driven
// failover machinery this runtime does not use.
type ProviderError struct {
	Reason   FailoverReason
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError builds a ProviderError from a raw SDK/API error,
// classifying its retry reason from the error text.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: ReasonUnknown}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// WithStatus records the HTTP status code and reclassifies the reason from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatusCode(status)
	return e
}

// ClassifyError inspects a raw error's text and returns the matching
// FailoverReason, grounded on the teacher's string-matching classification
// (providers/anthropic.go's isRetryableError and providers/errors.go's
// ClassifyError use the same substrings).
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return ReasonUnknown
	}
	s := strings.ToLower(err.Error())

	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"),
		strings.Contains(s, "connection reset"), strings.Contains(s, "connection refused"),
		strings.Contains(s, "no such host"):
		return ReasonTimeout
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"),
		strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		return ReasonRateLimit
	case strings.Contains(s, "unauthorized"), strings.Contains(s, "invalid api key"),
		strings.Contains(s, "authentication"), strings.Contains(s, "401"), strings.Contains(s, "403"):
		return ReasonAuth
	case strings.Contains(s, "content_filter"), strings.Contains(s, "content policy"),
		strings.Contains(s, "safety"), strings.Contains(s, "blocked"):
		return ReasonContentFilter
	case strings.Contains(s, "model not found"), strings.Contains(s, "model_not_found"),
		strings.Contains(s, "does not exist"):
		return ReasonModelUnavailable
	case strings.Contains(s, "internal server"), strings.Contains(s, "server error"),
		strings.Contains(s, "500"), strings.Contains(s, "502"),
		strings.Contains(s, "503"), strings.Contains(s, "504"), strings.Contains(s, "bad gateway"),
		strings.Contains(s, "service unavailable"), strings.Contains(s, "gateway timeout"):
		return ReasonServerError
	case strings.Contains(s, "400"):
		return ReasonInvalidRequest
	default:
		return ReasonUnknown
	}
}

func classifyStatusCode(status int) FailoverReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusBadRequest:
		return ReasonInvalidRequest
	case status == http.StatusNotFound:
		return ReasonModelUnavailable
	case status >= 500:
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// IsRetryable reports whether err (a raw error or a *ProviderError) should
// be retried under spec §7's StreamProtocol contract.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}
