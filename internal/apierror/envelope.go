package apierror

import (
	"time"

	"github.com/Laisky/llm-gateway/internal/dialect"
)

// ClaudeErrorBody is the Claude-dialect error envelope per spec §4.11 / §7.
type ClaudeErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
}

// OpenAIErrorBody is the OpenAI-dialect error envelope per spec §4.11 / §7.
type OpenAIErrorBody struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Code    *string `json:"code,omitempty"`
		Param   *string `json:"param,omitempty"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
}

// Envelope renders f as a dialect-shaped, sanitized error body plus the HTTP status to send.
func Envelope(f *Failure, d dialect.Dialect, correlationID string) (int, interface{}) {
	sanitized := Sanitize(f.Message)
	status := f.Kind.HTTPStatus()
	ts := timeNow().UTC().Format(time.RFC3339)

	switch d {
	case dialect.Claude:
		body := ClaudeErrorBody{Type: "error"}
		body.Error.Type = "api_error"
		body.Error.Message = sanitized
		body.CorrelationID = correlationID
		body.Timestamp = ts
		return status, body
	default:
		body := OpenAIErrorBody{}
		body.Error.Message = sanitized
		body.Error.Type = string(f.Kind)
		body.CorrelationID = correlationID
		body.Timestamp = ts
		return status, body
	}
}

// timeNow is a var so tests can stub it if ever needed; kept simple otherwise.
var timeNow = time.Now
