// Package streaming implements the Streaming Engine (spec §4.9): passthrough relay of a
// backend's native event stream, or simulation of one by fragmenting a unary result.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

// Flusher is the subset of http.ResponseWriter the engine needs to push bytes immediately.
type Flusher interface {
	Write([]byte) (int, error)
	Flush()
}

// WriteSSEHeaders sets the required SSE response headers (spec §4.9).
func WriteSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Run drains it, denormalizing and dialect-framing each chunk, until exhaustion, an error, or
// ctx cancellation. On cancellation it disposes it and returns a Canceled Failure without
// writing a final payload beyond whatever was already flushed (spec §4.9, §5, §7).
func Run(ctx context.Context, w Flusher, it backend.StreamIterator, d dialect.Dialect) error {
	defer it.Close()

	switch d {
	case dialect.Claude:
		return runClaude(ctx, w, it)
	default:
		return runOpenAI(ctx, w, it)
	}
}

func writeEvent(w Flusher, event string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func runClaude(ctx context.Context, w Flusher, it backend.StreamIterator) error {
	started := false
	textBlockOpen := false
	textBlockIndex := -1
	nextIndex := 0
	hasToolCall := false

	for {
		if err := ctx.Err(); err != nil {
			return apierror.New(apierror.KindCanceled, "stream canceled", err)
		}

		chunk, ok, err := it.Next(ctx)
		if err != nil {
			return classifyStreamErr(err)
		}
		if !ok {
			break
		}

		if !started {
			started = true
			if err := writeEvent(w, "message_start", map[string]interface{}{
				"type": "message_start",
				"message": map[string]interface{}{
					"id":    chunk.ID,
					"type":  "message",
					"role":  "assistant",
					"model": chunk.Model,
				},
			}); err != nil {
				return err
			}
		}

		for _, o := range chunk.Output {
			switch o.Kind {
			case backend.OutputText:
				if o.Text == "" {
					continue
				}
				if !textBlockOpen {
					textBlockOpen = true
					textBlockIndex = nextIndex
					nextIndex++
					if err := writeEvent(w, "content_block_start", map[string]interface{}{
						"type":          "content_block_start",
						"index":         textBlockIndex,
						"content_block": map[string]string{"type": "text", "text": ""},
					}); err != nil {
						return err
					}
				}
				if err := writeEvent(w, "content_block_delta", map[string]interface{}{
					"type":  "content_block_delta",
					"index": textBlockIndex,
					"delta": map[string]string{"type": "text_delta", "text": o.Text},
				}); err != nil {
					return err
				}

			case backend.OutputToolCall:
				hasToolCall = true
				idx := nextIndex
				nextIndex++
				if err := writeEvent(w, "content_block_start", map[string]interface{}{
					"type":  "content_block_start",
					"index": idx,
					"content_block": map[string]interface{}{
						"type": "tool_use", "id": o.ToolCallID, "name": o.ToolCallName, "input": map[string]interface{}{},
					},
				}); err != nil {
					return err
				}
				if err := writeEvent(w, "content_block_delta", map[string]interface{}{
					"type":  "content_block_delta",
					"index": idx,
					"delta": map[string]string{"type": "input_json_delta", "partial_json": o.ToolCallArguments},
				}); err != nil {
					return err
				}
				if err := writeEvent(w, "content_block_stop", map[string]interface{}{
					"type": "content_block_stop", "index": idx,
				}); err != nil {
					return err
				}
			}
		}

		if chunk.Final {
			if textBlockOpen {
				if err := writeEvent(w, "content_block_stop", map[string]interface{}{
					"type": "content_block_stop", "index": textBlockIndex,
				}); err != nil {
					return err
				}
			}
			stopReason := "end_turn"
			switch {
			case hasToolCall:
				stopReason = "tool_use"
			case chunk.Finish == backend.FinishLength:
				stopReason = "max_tokens"
			}
			usage := map[string]interface{}{}
			if chunk.Usage != nil {
				usage["input_tokens"] = chunk.Usage.PromptTokens
				usage["output_tokens"] = chunk.Usage.CompletionTokens
			}
			if err := writeEvent(w, "message_delta", map[string]interface{}{
				"type":  "message_delta",
				"delta": map[string]string{"stop_reason": stopReason},
				"usage": usage,
			}); err != nil {
				return err
			}
			return writeEvent(w, "message_stop", map[string]interface{}{"type": "message_stop"})
		}
	}
	return writeEvent(w, "message_stop", map[string]interface{}{"type": "message_stop"})
}

func runOpenAI(ctx context.Context, w Flusher, it backend.StreamIterator) error {
	hasToolCall := false

	for {
		if err := ctx.Err(); err != nil {
			return apierror.New(apierror.KindCanceled, "stream canceled", err)
		}

		chunk, ok, err := it.Next(ctx)
		if err != nil {
			return classifyStreamErr(err)
		}
		if !ok {
			break
		}

		delta := map[string]interface{}{}
		var toolCalls []map[string]interface{}
		for _, o := range chunk.Output {
			switch o.Kind {
			case backend.OutputText:
				if o.Text != "" {
					delta["content"] = o.Text
				}
			case backend.OutputToolCall:
				hasToolCall = true
				tc := map[string]interface{}{
					"index": len(toolCalls),
					"id":    o.ToolCallID,
					"type":  "function",
					"function": map[string]string{
						"name":      o.ToolCallName,
						"arguments": o.ToolCallArguments,
					},
				}
				toolCalls = append(toolCalls, tc)
			}
		}
		if len(toolCalls) > 0 {
			delta["tool_calls"] = toolCalls
		}

		var finishReason interface{}
		if chunk.Final {
			switch {
			case hasToolCall:
				finishReason = "tool_calls"
			case chunk.Finish == backend.FinishLength:
				finishReason = "length"
			default:
				finishReason = "stop"
			}
		}

		payload := map[string]interface{}{
			"id":      chunk.ID,
			"object":  "chat.completion.chunk",
			"created": chunk.Created,
			"model":   chunk.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			}},
		}
		if chunk.Final && chunk.Usage != nil {
			payload["usage"] = map[string]interface{}{
				"prompt_tokens":     chunk.Usage.PromptTokens,
				"completion_tokens": chunk.Usage.CompletionTokens,
				"total_tokens":      chunk.Usage.TotalTokens,
			}
		}

		if err := writeEvent(w, "", payload); err != nil {
			return err
		}
		if chunk.Final {
			break
		}
	}

	_, err := fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
	return err
}

func classifyStreamErr(err error) error {
	if _, ok := err.(*apierror.Failure); ok {
		return err
	}
	return apierror.New(apierror.KindUnknown, "stream error", err)
}
