package transport

import "fmt"

// Code classifies every provider failure the pipeline can observe. Adapters
// never leak raw vendor errors across the orchestrator boundary; everything
// arrives as an *Error carrying one of these codes.
type Code string

const (
	CodeInvalidKey              Code = "invalid_key"
	CodeInsufficientPermissions Code = "insufficient_permissions"
	CodeRateLimited             Code = "rate_limited"
	CodeServiceUnavailable      Code = "service_unavailable"
	CodeUnknown                 Code = "unknown_error"
	CodeNotImplemented          Code = "not_implemented"
)

// Error is the normalized provider failure.
type Error struct {
	Provider   string
	Code       Code
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (http %d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Retryable reports whether a job-level retry with the same provider could
// plausibly succeed. Invalid keys and permission problems need user action,
// not another attempt.
func (e *Error) Retryable() bool {
	return e.Code == CodeRateLimited || e.Code == CodeServiceUnavailable
}

// ClassifyStatus maps an HTTP status outside 2xx onto a failure code.
func ClassifyStatus(status int) Code {
	switch {
	case status == 401:
		return CodeInvalidKey
	case status == 403:
		return CodeInsufficientPermissions
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeServiceUnavailable
	default:
		return CodeUnknown
	}
}

// NotImplemented flags a capability a vendor adapter does not support.
func NotImplemented(provider, capability string) *Error {
	return &Error{Provider: provider, Code: CodeNotImplemented, Message: capability + " is not supported"}
}

// Unknown wraps an adapter-local failure (bad payload, parse error) that is
// not attributable to the wire.
func Unknown(provider string, err error) *Error {
	return &Error{Provider: provider, Code: CodeUnknown, Message: err.Error()}
}
