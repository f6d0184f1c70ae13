// Package fallback implements the Graceful-Degradation Hook (spec §4.10): when a request has
// exhausted retries against a retryable or unknown failure, it synthesizes a dialect-shaped
// apology response instead of surfacing the raw error, so the caller's client sees a well-formed
// message rather than a transport failure. 4xx failures are never downgraded this way; they are
// the caller's fault and must reach them as errors (spec §4.6, §4.10).
package fallback

import (
	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/denormalize"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

// Message is the fixed apology text surfaced in place of a degraded response.
const Message = "I'm sorry, I'm having trouble completing this request right now. Please try again shortly."

// Eligible reports whether f should be degraded to a fallback response rather than surfaced as
// an error, per spec §4.10: retry-exhausted, Upstream5xx, CircuitOpen, and Unknown kinds
// qualify; caller-fault kinds (validation, auth, not_found, rate_limit) never do.
func Eligible(f *apierror.Failure) bool {
	switch f.Kind {
	case apierror.KindUpstream5xx, apierror.KindCircuitOpen, apierror.KindUnknown,
		apierror.KindTimeout, apierror.KindNetwork:
		return true
	default:
		return false
	}
}

// Synthesize builds a neutral ResponsesResponse carrying the fixed apology text, model-tagged
// and zero-usage, so the normal denormalizer path renders it in the caller's dialect
// indistinguishably from a genuine (if short) model reply.
func Synthesize(model string) *backend.ResponsesResponse {
	return &backend.ResponsesResponse{
		ID:     "fallback",
		Model:  model,
		Output: []backend.Output{{Kind: backend.OutputText, Text: Message}},
		Usage:  backend.Usage{},
		Finish: backend.FinishStop,
	}
}

// Render synthesizes and denormalizes the fallback response in one step for d's dialect,
// stamping correlationID into the body so a degraded response still carries it (spec §7).
func Render(model string, d dialect.Dialect, correlationID string) interface{} {
	resp := Synthesize(model)
	if d == dialect.Claude {
		body := denormalize.ToClaude(resp)
		body.CorrelationID = correlationID
		return body
	}
	body := denormalize.ToOpenAI(resp)
	body.CorrelationID = correlationID
	return body
}
