package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/reasoning"
)

func TestParseClaudeSingleUserCollapsesToString(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","messages":[{"role":"user","content":"Hello"}],"max_tokens":50}`)
	nr, err := ParseClaude(body, true)
	require.NoError(t, err)

	rr := ToResponsesRequest(nr, "", reasoning.Minimal)
	require.Equal(t, "Hello", rr.Input)
}

func TestParseClaudeEmptyTextGetsPlaceholder(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","messages":[{"role":"user","content":""}],"max_tokens":50}`)
	nr, err := ParseClaude(body, true)
	require.NoError(t, err)
	require.Equal(t, SanitizationPlaceholder, nr.Messages[0].Text)
}

func TestParseClaudeMissingMessagesFails(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","messages":[]}`)
	_, err := ParseClaude(body, true)
	require.Error(t, err)
}

func TestParseClaudeSystemPrependedWhenTailMessagesExist(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","system":"be nice","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hey"},{"role":"user","content":"bye"}]}`)
	nr, err := ParseClaude(body, true)
	require.NoError(t, err)

	rr := ToResponsesRequest(nr, "", reasoning.Minimal)
	msgs, ok := rr.Input.([]backend.Message)
	require.True(t, ok)
	require.Equal(t, "system", msgs[0].Role)
	require.Equal(t, "be nice", msgs[0].Content)
}

func TestParseClaudeToolTranslation(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","messages":[{"role":"user","content":"2+2"}],
		"tools":[{"name":"calculator","description":"adds","input_schema":{"type":"object"}}],
		"tool_choice":"any"}`)
	nr, err := ParseClaude(body, true)
	require.NoError(t, err)
	require.Len(t, nr.Tools, 1)
	require.Equal(t, "function", nr.Tools[0].Type)
	require.Equal(t, "calculator", nr.Tools[0].Function.Name)
	require.Equal(t, "auto", nr.ToolChoice.String)
}

func TestParseClaudeToolUseAndResultMarkers(t *testing.T) {
	body := []byte(`{"model":"claude-3-5-sonnet-20241022","messages":[
		{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"calc","input":{"a":1}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"4"}]}
	]}`)
	nr, err := ParseClaude(body, true)
	require.NoError(t, err)
	require.Contains(t, nr.Messages[0].Text, "[Tool Call: calc(")
	require.Contains(t, nr.Messages[1].Text, "[Tool Result for t1]: 4")
}

func TestParseOpenAIToolCallFlattening(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[
		{"role":"user","content":"what is 2+2"},
		{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"calc","arguments":"{\"a\":2}"}}]},
		{"role":"tool","tool_call_id":"c1","content":"4"}
	]}`)
	nr, err := ParseOpenAI(body, true)
	require.NoError(t, err)
	require.Contains(t, nr.Messages[1].Text, "[Tool Call: calc(")
	require.Contains(t, nr.Messages[2].Text, "[Tool Result for c1]: 4")
}

func TestParseOpenAIStopAcceptsStringOrArray(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stop":"END"}`)
	nr, err := ParseOpenAI(body, true)
	require.NoError(t, err)
	require.Equal(t, []string{"END"}, nr.Stop)
}

func TestSanitizationStripsScriptTags(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi <script>alert(1)</script> there"}]}`)
	nr, err := ParseOpenAI(body, true)
	require.NoError(t, err)
	require.NotContains(t, nr.Messages[0].Text, "<script>")
}

func TestEffortNeverLowerThanCallerHint(t *testing.T) {
	nr := &NormalizedRequest{Model: "m", ReasoningEffortHint: "high", Messages: []Message{{Role: "user", Text: "hi"}}}
	rr := ToResponsesRequest(nr, "", reasoning.Minimal)
	require.Equal(t, "high", rr.Reasoning.Effort)
}
