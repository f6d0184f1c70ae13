package streaming

import (
	"context"
	"time"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
)

// simulatedChunkCount is the number of fragments a simulated stream splits its text output
// into (spec §4.9: backends that only support unary responses are still streamed to the
// caller by fragmenting the complete result).
const simulatedChunkCount = 5

// simulatedChunkDelay paces emitted fragments so callers observe genuine incremental delivery
// rather than a burst.
const simulatedChunkDelay = 40 * time.Millisecond

// Simulated wraps a unary ResponsesResponse as a StreamIterator, fragmenting its first text
// output into simulatedChunkCount pieces. Non-text outputs (tool calls, reasoning) are emitted
// whole on the final chunk, since they have no natural fragmentation point.
type Simulated struct {
	resp     *backend.ResponsesResponse
	frags    []string
	idx      int
	delay    time.Duration
	disposed bool
}

// NewSimulated builds a simulated stream iterator from a completed unary response.
func NewSimulated(resp *backend.ResponsesResponse) *Simulated {
	return &Simulated{resp: resp, frags: fragmentText(firstText(resp), simulatedChunkCount), delay: simulatedChunkDelay}
}

func firstText(r *backend.ResponsesResponse) string {
	for _, o := range r.Output {
		if o.Kind == backend.OutputText {
			return o.Text
		}
	}
	return ""
}

// fragmentText splits s into at most n roughly-equal, non-empty pieces, preserving order and
// concatenation back to s. An empty s yields a single empty fragment so the stream still emits
// one (possibly content-free) chunk.
func fragmentText(s string, n int) []string {
	if s == "" {
		return []string{""}
	}
	runes := []rune(s)
	if len(runes) < n {
		n = len(runes)
	}
	if n < 1 {
		n = 1
	}

	size := (len(runes) + n - 1) / n
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// Next implements backend.StreamIterator.
func (s *Simulated) Next(ctx context.Context) (*backend.ResponsesStreamChunk, bool, error) {
	if s.idx >= len(s.frags) {
		return nil, false, nil
	}

	if s.idx > 0 {
		select {
		case <-ctx.Done():
			return nil, false, apierror.New(apierror.KindCanceled, "stream canceled", ctx.Err())
		case <-time.After(s.delay):
		}
	}

	frag := s.frags[s.idx]
	isLast := s.idx == len(s.frags)-1
	s.idx++

	chunk := &backend.ResponsesStreamChunk{
		ID:      s.resp.ID,
		Created: s.resp.Created,
		Model:   s.resp.Model,
		Final:   isLast,
	}
	if frag != "" {
		chunk.Output = append(chunk.Output, backend.Output{Kind: backend.OutputText, Text: frag})
	}
	if isLast {
		for _, o := range s.resp.Output {
			if o.Kind != backend.OutputText {
				chunk.Output = append(chunk.Output, o)
			}
		}
		chunk.Usage = &s.resp.Usage
		chunk.Finish = s.resp.Finish
	}
	return chunk, true, nil
}

// Close marks the iterator disposed; fragmenting a unary result holds no external resource.
func (s *Simulated) Close() error {
	s.disposed = true
	return nil
}
