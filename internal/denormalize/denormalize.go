package denormalize

import (
	"encoding/json"

	"github.com/Laisky/llm-gateway/internal/backend"
)

// ToClaude converts a neutral ResponsesResponse into a Claude-dialect response body. Reasoning
// outputs are never surfaced in the visible content, per spec §4.8 and testable property 2.
func ToClaude(r *backend.ResponsesResponse) *ClaudeResponse {
	out := &ClaudeResponse{
		ID:    r.ID,
		Type:  "message",
		Role:  "assistant",
		Model: r.Model,
	}

	hasToolCall := false
	for _, o := range r.Output {
		switch o.Kind {
		case backend.OutputText:
			out.Content = append(out.Content, ClaudeContentBlock{Type: "text", Text: o.Text})
		case backend.OutputToolCall:
			hasToolCall = true
			var args interface{}
			_ = json.Unmarshal([]byte(o.ToolCallArguments), &args)
			out.Content = append(out.Content, ClaudeContentBlock{
				Type:  "tool_use",
				ID:    o.ToolCallID,
				Name:  o.ToolCallName,
				Input: args,
			})
		case backend.OutputReasoning:
			// intentionally omitted from the visible response (spec §4.8)
		}
	}

	switch {
	case hasToolCall:
		out.StopReason = "tool_use"
	case r.Finish == backend.FinishLength:
		out.StopReason = "max_tokens"
	default:
		out.StopReason = "end_turn"
	}

	out.Usage = ClaudeUsage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens}
	return out
}

// ToOpenAI converts a neutral ResponsesResponse into an OpenAI-dialect chat-completion body.
func ToOpenAI(r *backend.ResponsesResponse) *OpenAIResponse {
	msg := OpenAIMessage{Role: "assistant"}
	hasToolCall := false

	for _, o := range r.Output {
		switch o.Kind {
		case backend.OutputText:
			msg.Content += o.Text
		case backend.OutputToolCall:
			hasToolCall = true
			tc := OpenAIToolCall{ID: o.ToolCallID, Type: "function"}
			tc.Function.Name = o.ToolCallName
			tc.Function.Arguments = o.ToolCallArguments
			msg.ToolCalls = append(msg.ToolCalls, tc)
		case backend.OutputReasoning:
			// omitted; OpenAI has no standard field for it (spec §4.8)
		}
	}

	finishReason := "stop"
	if hasToolCall {
		finishReason = "tool_calls"
	} else if r.Finish == backend.FinishLength {
		finishReason = "length"
	}

	return &OpenAIResponse{
		ID:      r.ID,
		Object:  "chat.completion",
		Created: r.Created,
		Model:   r.Model,
		Choices: []OpenAIChoice{{Index: 0, Message: msg, FinishReason: finishReason}},
		Usage: OpenAIUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
}

// FirstText returns the first text output's content, used by the Streaming Engine's simulated
// mode to fragment a unary result (spec §4.9).
func FirstText(r *backend.ResponsesResponse) string {
	for _, o := range r.Output {
		if o.Kind == backend.OutputText {
			return o.Text
		}
	}
	return ""
}

// HasToolCall reports whether r contains at least one tool_call output.
func HasToolCall(r *backend.ResponsesResponse) bool {
	for _, o := range r.Output {
		if o.Kind == backend.OutputToolCall {
			return true
		}
	}
	return false
}
