package azure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
)

func TestBuildRequestBodyIncludesCoreFields(t *testing.T) {
	c := &Client{model: "gpt-4o"}
	req := &backend.ResponsesRequest{Model: "gpt-4o", Input: "hello", Reasoning: backend.Reasoning{Effort: "medium"}}
	body, err := c.buildRequestBody(req)
	require.NoError(t, err)
	require.Contains(t, string(body), `"model":"gpt-4o"`)
	require.Contains(t, string(body), `"input":"hello"`)
	require.Contains(t, string(body), `"effort":"medium"`)
}

func TestParseUnaryResponseDerivesTotalTokens(t *testing.T) {
	raw := []byte(`{
		"id":"resp_1","model":"gpt-4o",
		"output":[{"type":"text","text":"hi there"}],
		"usage":{"prompt_tokens":5,"completion_tokens":3},
		"finish_reason":"stop"
	}`)
	resp, err := parseUnaryResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Output[0].Text)
	require.Equal(t, 8, resp.Usage.TotalTokens)
	require.Equal(t, backend.FinishStop, resp.Finish)
}

func TestParseUnaryResponseToolCall(t *testing.T) {
	raw := []byte(`{
		"id":"resp_2","model":"gpt-4o",
		"output":[{"type":"tool_call","id":"c1","name":"calc","arguments":"{\"a\":1}"}],
		"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}
	}`)
	resp, err := parseUnaryResponse(raw)
	require.NoError(t, err)
	require.Equal(t, backend.OutputToolCall, resp.Output[0].Kind)
	require.Equal(t, "calc", resp.Output[0].ToolCallName)
}

func TestDecodeEventOutputTextDelta(t *testing.T) {
	raw := []byte(`{"type":"response.output_text.delta","delta":"hel","response":{"id":"r1","model":"gpt-4o"}}`)
	chunk, handled := decodeEvent(raw)
	require.True(t, handled)
	require.Equal(t, "hel", chunk.Output[0].Text)
}

func TestDecodeEventCompletedMarksFinal(t *testing.T) {
	raw := []byte(`{"type":"response.completed","response":{"id":"r1","model":"gpt-4o","finish_reason":"stop","usage":{"prompt_tokens":2,"completion_tokens":4}}}`)
	chunk, handled := decodeEvent(raw)
	require.True(t, handled)
	require.True(t, chunk.Final)
	require.Equal(t, 6, chunk.Usage.TotalTokens)
}

func TestDecodeEventIgnoresUnknownType(t *testing.T) {
	_, handled := decodeEvent([]byte(`{"type":"some.future.event"}`))
	require.False(t, handled)
}

func TestDecodeEventOutputItemAddedFunctionCall(t *testing.T) {
	raw := []byte(`{"type":"response.output_item.added","item":{"type":"function_call","id":"c1","name":"calc","arguments":"{\"a\":1}"}}`)
	chunk, handled := decodeEvent(raw)
	require.True(t, handled)
	require.Equal(t, backend.OutputToolCall, chunk.Output[0].Kind)
	require.Equal(t, "calc", chunk.Output[0].ToolCallName)
	require.Equal(t, `{"a":1}`, chunk.Output[0].ToolCallArguments)
}

func TestDecodeEventOutputItemAddedReasoning(t *testing.T) {
	raw := []byte(`{"type":"response.output_item.added","item":{"type":"reasoning","text":"thinking","status":"in_progress"}}`)
	chunk, handled := decodeEvent(raw)
	require.True(t, handled)
	require.Equal(t, backend.OutputReasoning, chunk.Output[0].Kind)
	require.Equal(t, "thinking", chunk.Output[0].ReasoningContent)
}

func TestDecodeEventOutputItemAddedText(t *testing.T) {
	raw := []byte(`{"type":"response.output_item.added","item":{"type":"text","text":"hi"}}`)
	chunk, handled := decodeEvent(raw)
	require.True(t, handled)
	require.Equal(t, backend.OutputText, chunk.Output[0].Kind)
	require.Equal(t, "hi", chunk.Output[0].Text)
}

func TestDecodeEventOutputItemAddedIgnoresUnknownItemType(t *testing.T) {
	_, handled := decodeEvent([]byte(`{"type":"response.output_item.added","item":{"type":"some.future.item"}}`))
	require.False(t, handled)
}

func TestClassifyHTTPStatusMapsKinds(t *testing.T) {
	require.Equal(t, apierror.KindAuthentication, classifyHTTPStatus(401, nil).(*apierror.Failure).Kind)
	require.Equal(t, apierror.KindRateLimit, classifyHTTPStatus(429, nil).(*apierror.Failure).Kind)
	require.Equal(t, apierror.KindUpstream5xx, classifyHTTPStatus(503, nil).(*apierror.Failure).Kind)
}
