package normalize

import (
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/reasoning"
)

// ToResponsesRequest builds the neutral backend.ResponsesRequest from a validated
// NormalizedRequest (spec §4.2). analyzerEffort is the Reasoning-Effort Analyzer's output;
// the final effort is whichever is higher between it and the caller's hint (never lower than
// the caller asked for, spec §9). previousResponseID, if non-empty, is attached for
// server-side conversation continuity.
func ToResponsesRequest(req *NormalizedRequest, previousResponseID string, analyzerEffort reasoning.Effort) *backend.ResponsesRequest {
	hint := reasoning.Medium
	if req.ReasoningEffortHint != "" {
		hint = reasoning.ParseEffort(req.ReasoningEffortHint)
	}
	finalEffort := reasoning.Max(hint, analyzerEffort)

	out := &backend.ResponsesRequest{
		Model:              req.Model,
		Reasoning:          backend.Reasoning{Effort: finalEffort.String()},
		MaxOutputTokens:    req.MaxTokens,
		Temperature:        req.Temperature,
		TopP:               req.TopP,
		Stream:             req.Stream,
		PreviousResponseID: previousResponseID,
		Tools:              req.Tools,
		ToolChoice:         req.ToolChoice,
		Stop:               req.Stop,
		ResponseFormat:     req.ResponseFormat,
	}

	out.Input = buildInput(req)
	return out
}

// buildInput implements spec §4.2's input-shaping rule: prepend a system message ahead of any
// tail messages when both exist; collapse a lone user turn to a bare string; otherwise emit the
// full message list.
func buildInput(req *NormalizedRequest) interface{} {
	if req.System == "" && len(req.Messages) == 1 && req.Messages[0].Role == "user" {
		return req.Messages[0].Text
	}

	var msgs []backend.Message
	if req.System != "" {
		msgs = append(msgs, backend.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, backend.Message{Role: m.Role, Content: m.Text})
	}

	if req.System == "" && len(msgs) == 1 && msgs[0].Role == "user" {
		return msgs[0].Content
	}
	return msgs
}
