// Package apierror implements the error taxonomy, sanitizer, and dialect mapper from spec §4.11.
package apierror

import "net/http"

// Kind classifies a BackendFailure. Dispatch on Kind is a plain switch, not a type hierarchy,
// per the tagged-variant design note in spec §9.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindRateLimit      Kind = "rate_limit"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindUpstream5xx    Kind = "upstream_5xx"
	KindCircuitOpen    Kind = "circuit_open"
	KindCanceled       Kind = "canceled"
	KindUnknown        Kind = "unknown"
)

// Retryable reports whether this kind is ever eligible for a retry attempt, per spec §4.6.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindUpstream5xx, KindRateLimit:
		return true
	default:
		return false
	}
}

// Expected reports whether the circuit breaker counts failures of this kind toward tripping,
// per spec §4.6 expectedErrors = {Network, Timeout, Upstream5xx}.
func (k Kind) Expected() bool {
	switch k {
	case KindNetwork, KindTimeout, KindUpstream5xx:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the caller-facing HTTP status code, per spec §4.11.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindNetwork, KindUpstream5xx, KindCircuitOpen:
		return http.StatusServiceUnavailable
	case KindCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Failure is a classified backend error with a preserved cause chain.
type Failure struct {
	Kind       Kind
	Message    string
	Cause      error
	RetryAfter string // optional server-provided retry-after hint, honored by the retry strategy
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Cause != nil {
		return f.Message + ": " + f.Cause.Error()
	}
	return f.Message
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (f *Failure) Unwrap() error { return f.Cause }

// New constructs a classified Failure.
func New(kind Kind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}
