// Package dialect defines the caller-dialect tag shared across the normalizer, denormalizer,
// streaming engine, and error mapper, and the Format Detector that assigns it (spec §4.1).
package dialect

import (
	"net/http"
	"strings"
)

// Dialect is the caller-facing request/response shape family: claude or openai.
type Dialect string

const (
	Claude Dialect = "claude"
	OpenAI Dialect = "openai"
)

// Detect classifies an incoming request as Claude or OpenAI dialect per spec §4.1.
//
// Tie-break order: path prefix, then body shape, then model-name prefix. A claude
// classification reached by body shape or by model is downgraded to openai when the path isn't
// /v1/messages and the model id lacks the claude- prefix. Fails safe to Claude when nothing
// at the top level of the body can be classified.
func Detect(path string, body map[string]interface{}) Dialect {
	switch path {
	case "/v1/messages":
		return Claude
	case "/v1/chat/completions", "/v1/completions":
		return OpenAI
	}

	if body == nil {
		return Claude
	}

	model, _ := body["model"].(string)
	hasClaudePrefix := strings.HasPrefix(model, "claude-")

	var candidate Dialect
	ambiguous := false
	switch {
	case hasOpenAIShape(body):
		candidate = OpenAI
	case hasClaudeBodyShape(body):
		candidate = Claude
	case model != "":
		if hasClaudePrefix {
			candidate = Claude
		} else {
			candidate = OpenAI
		}
	default:
		ambiguous = true
	}

	if ambiguous {
		// Fails safe to claude only when nothing at the top level classifies the body.
		return Claude
	}

	if candidate == Claude && path != "/v1/messages" && !hasClaudePrefix {
		return OpenAI
	}
	return candidate
}

func hasClaudeBodyShape(body map[string]interface{}) bool {
	if _, ok := body["system"]; ok {
		return true
	}
	return hasClaudeToolSchema(body)
}

func hasClaudeToolSchema(body map[string]interface{}) bool {
	tools, ok := body["tools"].([]interface{})
	if !ok {
		return false
	}
	for _, t := range tools {
		tm, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		if _, ok := tm["input_schema"]; ok {
			return true
		}
	}
	return false
}

func hasOpenAIShape(body map[string]interface{}) bool {
	if _, ok := body["response_format"]; ok {
		return true
	}
	messages, ok := body["messages"].([]interface{})
	if !ok {
		return false
	}
	for _, m := range messages {
		mm, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		if _, ok := mm["tool_calls"]; ok {
			return true
		}
	}
	return false
}

// DetectFromRequest is a convenience wrapper reading the URL path off an *http.Request; the
// body shape must still be supplied separately since it has already been consumed upstream.
func DetectFromRequest(r *http.Request, body map[string]interface{}) Dialect {
	if r == nil || r.URL == nil {
		return Detect("", body)
	}
	return Detect(r.URL.Path, body)
}
