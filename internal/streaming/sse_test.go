package streaming

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

type bufFlusher struct {
	buf bytes.Buffer
}

func (b *bufFlusher) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufFlusher) Flush()                      {}

type fakeIterator struct {
	chunks []*backend.ResponsesStreamChunk
	idx    int
	closed bool
}

func (f *fakeIterator) Next(ctx context.Context) (*backend.ResponsesStreamChunk, bool, error) {
	if f.idx >= len(f.chunks) {
		return nil, false, nil
	}
	c := f.chunks[f.idx]
	f.idx++
	return c, true, nil
}

func (f *fakeIterator) Close() error {
	f.closed = true
	return nil
}

func twoChunkFixture() *fakeIterator {
	return &fakeIterator{chunks: []*backend.ResponsesStreamChunk{
		{ID: "resp_1", Model: "m", Output: []backend.Output{{Kind: backend.OutputText, Text: "hel"}}},
		{
			ID: "resp_1", Model: "m", Final: true, Finish: backend.FinishStop,
			Output: []backend.Output{{Kind: backend.OutputText, Text: "lo"}},
			Usage:  &backend.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		},
	}}
}

func TestRunClaudeEmitsExactlyOneStartAndStop(t *testing.T) {
	w := &bufFlusher{}
	it := twoChunkFixture()
	err := Run(context.Background(), w, it, dialect.Claude)
	require.NoError(t, err)
	require.True(t, it.closed)

	out := w.buf.String()
	require.Equal(t, 1, strings.Count(out, "event: message_start"))
	require.Equal(t, 1, strings.Count(out, "event: message_stop"))
	require.Equal(t, 2, strings.Count(out, "event: content_block_delta"))
}

func TestRunOpenAIEmitsDoneTerminator(t *testing.T) {
	w := &bufFlusher{}
	it := twoChunkFixture()
	err := Run(context.Background(), w, it, dialect.OpenAI)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(w.buf.String(), "data: [DONE]\n\n"))
}

func toolCallFixture() *fakeIterator {
	return &fakeIterator{chunks: []*backend.ResponsesStreamChunk{
		{
			ID: "resp_3", Model: "m", Final: true, Finish: backend.FinishToolCalls,
			Output: []backend.Output{{Kind: backend.OutputToolCall, ToolCallID: "t1", ToolCallName: "calc", ToolCallArguments: `{"a":1}`}},
			Usage:  &backend.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		},
	}}
}

func TestRunClaudeEmitsToolUseBlockAndStopReason(t *testing.T) {
	w := &bufFlusher{}
	err := Run(context.Background(), w, toolCallFixture(), dialect.Claude)
	require.NoError(t, err)

	out := w.buf.String()
	require.Contains(t, out, `"type":"tool_use"`)
	require.Contains(t, out, `"name":"calc"`)
	require.Contains(t, out, `"partial_json":"{\"a\":1}"`)
	require.Contains(t, out, `"stop_reason":"tool_use"`)
}

func TestRunOpenAIEmitsToolCallsDeltaAndFinishReason(t *testing.T) {
	w := &bufFlusher{}
	err := Run(context.Background(), w, toolCallFixture(), dialect.OpenAI)
	require.NoError(t, err)

	out := w.buf.String()
	require.Contains(t, out, `"tool_calls"`)
	require.Contains(t, out, `"name":"calc"`)
	require.Contains(t, out, `"finish_reason":"tool_calls"`)
}

func TestRunCanceledReturnsCanceledFailure(t *testing.T) {
	w := &bufFlusher{}
	it := twoChunkFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, w, it, dialect.Claude)
	require.Error(t, err)
	var f *apierror.Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, apierror.KindCanceled, f.Kind)
}

func TestSimulatedFragmentsAndClosesOut(t *testing.T) {
	resp := &backend.ResponsesResponse{
		ID:    "resp_2",
		Model: "m",
		Output: []backend.Output{
			{Kind: backend.OutputText, Text: "hello world this is long enough to split"},
		},
		Usage: backend.Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
	}
	sim := NewSimulated(resp)

	var reconstructed strings.Builder
	var sawFinal bool
	for {
		chunk, ok, err := sim.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		for _, o := range chunk.Output {
			if o.Kind == backend.OutputText {
				reconstructed.WriteString(o.Text)
			}
		}
		if chunk.Final {
			sawFinal = true
			require.NotNil(t, chunk.Usage)
		}
	}
	require.True(t, sawFinal)
	require.Equal(t, "hello world this is long enough to split", reconstructed.String())
	require.NoError(t, sim.Close())
}
