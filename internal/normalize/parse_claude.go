package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

// claudeContentBlock models one entry of a Claude message's array-shaped content.
type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// claudeMessage models one entry of a Claude request's messages array; Content may be a plain
// string or an array of claudeContentBlock, hence the raw-message intermediate.
type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// claudeRequest is the raw incoming /v1/messages body.
type claudeRequest struct {
	Model         string          `json:"model"`
	Messages      []claudeMessage `json:"messages"`
	System        json.RawMessage `json:"system"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature"`
	TopP          *float64        `json:"top_p"`
	Stream        bool            `json:"stream"`
	Tools         []claudeTool    `json:"tools"`
	ToolChoice    json.RawMessage `json:"tool_choice"`
	StopSequences []string        `json:"stop_sequences"`
}

// ParseClaude validates and normalizes a raw /v1/messages body into a NormalizedRequest.
func ParseClaude(body []byte, sanitizeEnabled bool) (*NormalizedRequest, error) {
	var raw claudeRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierror.New(apierror.KindValidation, "request body is not valid JSON", err)
	}

	if raw.Model == "" {
		return nil, fieldErr("model", "must not be empty")
	}
	if len(raw.Messages) == 0 {
		return nil, fieldErr("messages", "must not be empty")
	}

	out := &NormalizedRequest{
		Dialect:     dialect.Claude,
		Model:       raw.Model,
		MaxTokens:   raw.MaxTokens,
		Temperature: raw.Temperature,
		TopP:        raw.TopP,
		Stream:      raw.Stream,
		Stop:        raw.StopSequences,
	}

	if len(raw.System) > 0 {
		sysText, err := claudeContentToText(raw.System)
		if err != nil {
			return nil, fieldErr("system", err.Error())
		}
		out.System = sanitizeText(sysText, sanitizeEnabled)
	}

	for i, m := range raw.Messages {
		if !validRole(m.Role) {
			return nil, fieldErr(fmt.Sprintf("messages[%d].role", i), "must be one of user, assistant, system, tool")
		}
		if m.Role == "system" {
			if out.System == "" {
				text, err := claudeContentToText(m.Content)
				if err != nil {
					return nil, fieldErr(fmt.Sprintf("messages[%d].content", i), err.Error())
				}
				out.System = sanitizeText(text, sanitizeEnabled)
			}
			continue
		}
		text, err := claudeContentToText(m.Content)
		if err != nil {
			return nil, fieldErr(fmt.Sprintf("messages[%d].content", i), err.Error())
		}
		out.Messages = append(out.Messages, Message{Role: m.Role, Text: sanitizeText(text, sanitizeEnabled)})
	}

	for _, t := range raw.Tools {
		var params interface{}
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &params); err != nil {
				return nil, fieldErr("tools[].input_schema", "must be valid JSON")
			}
		}
		out.Tools = append(out.Tools, backend.Tool{
			Type: "function",
			Function: backend.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	if len(raw.ToolChoice) > 0 {
		tc, err := parseClaudeToolChoice(raw.ToolChoice)
		if err != nil {
			return nil, fieldErr("tool_choice", err.Error())
		}
		out.ToolChoice = tc
	}

	return out, nil
}

// claudeContentToText flattens a Claude message's content (string or content-block array) into
// plain text, rendering tool_use/tool_result blocks as the documented textual markers so every
// downstream component only ever deals with plain message text (spec §4.2).
func claudeContentToText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", errors.New("content must be a string or an array of content blocks")
	}

	var sb []byte
	for _, b := range blocks {
		switch b.Type {
		case "text":
			sb = append(sb, []byte(b.Text)...)
		case "tool_use":
			sb = append(sb, []byte(fmt.Sprintf("[Tool Call: %s(%s)]", b.Name, string(b.Input)))...)
		case "tool_result":
			content := string(b.Content)
			var asStr string
			if err := json.Unmarshal(b.Content, &asStr); err == nil {
				content = asStr
			}
			sb = append(sb, []byte(fmt.Sprintf("[Tool Result for %s]: %s", b.ToolUseID, content))...)
		}
	}
	return string(sb), nil
}

// parseClaudeToolChoice maps claude's tool_choice shape to the neutral one (spec §4.2):
// "any" -> "auto"; {type:"tool", name} -> {type:"function", function:{name}}; everything else
// (e.g. "auto", "none") passes through as-is.
func parseClaudeToolChoice(raw json.RawMessage) (*backend.ToolChoice, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "any" {
			return &backend.ToolChoice{String: "auto"}, nil
		}
		return &backend.ToolChoice{String: asString}, nil
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.New("tool_choice must be a string or {type, name} object")
	}
	if obj.Type != "tool" {
		return nil, errors.Errorf("unsupported tool_choice type: %s", obj.Type)
	}
	fc := &backend.ToolChoiceFunction{Type: "function"}
	fc.Function.Name = obj.Name
	return &backend.ToolChoice{Function: fc}, nil
}

func validRole(role string) bool {
	switch role {
	case "user", "assistant", "system", "tool":
		return true
	default:
		return false
	}
}

func fieldErr(field, reason string) error {
	return apierror.New(apierror.KindValidation, fmt.Sprintf("field %q: %s", field, reason), nil)
}
