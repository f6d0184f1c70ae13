package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    json.RawMessage  `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// openAIStop accepts either a single string or an array of strings, matching the API's shape.
type openAIStop struct {
	values []string
}

func (s *openAIStop) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			s.values = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	s.values = many
	return nil
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    *float64        `json:"temperature"`
	TopP           *float64        `json:"top_p"`
	Stream         bool            `json:"stream"`
	Tools          []openAITool    `json:"tools"`
	ToolChoice     json.RawMessage `json:"tool_choice"`
	Stop           openAIStop      `json:"stop"`
	ResponseFormat interface{}     `json:"response_format"`
}

// ParseOpenAI validates and normalizes a raw /v1/chat/completions or /v1/completions body.
func ParseOpenAI(body []byte, sanitizeEnabled bool) (*NormalizedRequest, error) {
	var raw openAIRequest
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
		Dialect:        dialect.OpenAI,
		Model:          raw.Model,
		MaxTokens:      raw.MaxTokens,
		Temperature:    raw.Temperature,
		TopP:           raw.TopP,
		Stream:         raw.Stream,
		Stop:           raw.Stop.values,
		ResponseFormat: raw.ResponseFormat,
	}

	for i, m := range raw.Messages {
		if !validRole(m.Role) {
			return nil, fieldErr(fmt.Sprintf("messages[%d].role", i), "must be one of user, assistant, system, tool")
		}

		text, err := openAIMessageText(m)
		if err != nil {
			return nil, fieldErr(fmt.Sprintf("messages[%d].content", i), err.Error())
		}

		if m.Role == "system" {
			if out.System == "" {
				out.System = sanitizeText(text, sanitizeEnabled)
			}
			continue
		}
		out.Messages = append(out.Messages, Message{Role: m.Role, Text: sanitizeText(text, sanitizeEnabled)})
	}

	for _, t := range raw.Tools {
		var params interface{}
		if len(t.Function.Parameters) > 0 {
			if err := json.Unmarshal(t.Function.Parameters, &params); err != nil {
				return nil, fieldErr("tools[].function.parameters", "must be valid JSON")
			}
		}
		out.Tools = append(out.Tools, backend.Tool{
			Type: "function",
			Function: backend.ToolFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  params,
			},
		})
	}

	if len(raw.ToolChoice) > 0 {
		tc, err := parseOpenAIToolChoice(raw.ToolChoice)
		if err != nil {
			return nil, fieldErr("tool_choice", err.Error())
		}
		out.ToolChoice = tc
	}

	return out, nil
}

// openAIMessageText flattens an OpenAI message into plain text: tool-call content becomes
// "[Tool Call: name(args)]" markers (order preserved across multiple calls), tool-result
// (role=="tool") content becomes "[Tool Result for <id>]: <content>" (spec §4.2).
func openAIMessageText(m openAIMessage) (string, error) {
	if m.Role == "tool" {
		content, err := contentToPlainText(m.Content)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[Tool Result for %s]: %s", m.ToolCallID, content), nil
	}

	base, err := contentToPlainText(m.Content)
	if err != nil {
		return "", err
	}

	if len(m.ToolCalls) == 0 {
		return base, nil
	}

	text := base
	for _, tc := range m.ToolCalls {
		marker := fmt.Sprintf("[Tool Call: %s(%s)]", tc.Function.Name, tc.Function.Arguments)
		if text == "" {
			text = marker
		} else {
			text = text + " " + marker
		}
	}
	return text, nil
}

// contentToPlainText accepts either a plain string or the array-of-parts content shape and
// concatenates any "text" parts, matching how multi-part OpenAI message content is rendered.
func contentToPlainText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", errors.New("content must be a string or an array of parts")
	}
	var out string
	for _, p := range parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out, nil
}

// parseOpenAIToolChoice passes the shape through, only validating it is a recognized form.
func parseOpenAIToolChoice(raw json.RawMessage) (*backend.ToolChoice, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return &backend.ToolChoice{String: asString}, nil
	}

	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.New("tool_choice must be a string or {type, function} object")
	}
	fc := &backend.ToolChoiceFunction{Type: obj.Type}
	fc.Function.Name = obj.Function.Name
	return &backend.ToolChoice{Function: fc}, nil
}
