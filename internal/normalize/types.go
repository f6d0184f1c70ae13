// Package normalize implements the Request Normalizer (spec §4.2): it converts either caller
// dialect into the neutral backend.ResponsesRequest, applying content-security sanitization
// and tool-schema translation along the way.
package normalize

import (
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

// SanitizationPlaceholder is substituted for any text block that is empty, or becomes empty
// after sanitization strips it, so downstream schemas stay valid (spec glossary).
const SanitizationPlaceholder = "[Content was sanitized and removed for security]"

// Message is one tail message (system messages are extracted out into NormalizedRequest.System
// rather than kept in this list, per spec §4.2).
type Message struct {
	Role string
	Text string
}

// NormalizedRequest is the validated, caller-dialect-tagged request (spec §3).
type NormalizedRequest struct {
	Dialect     dialect.Dialect
	Model       string
	System      string
	Messages    []Message
	Tools       []backend.Tool
	ToolChoice  *backend.ToolChoice
	Temperature *float64
	TopP        *float64
	MaxTokens   int
	Stream      bool
	Stop        []string

	// ReasoningEffortHint is the caller-provided effort, if any; "" means unset, in which
	// case the Normalizer's default of medium applies before combining with the Analyzer.
	ReasoningEffortHint string

	ResponseFormat interface{} // openai-only, passed through opaquely
}
