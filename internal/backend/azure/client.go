// Package azure implements backend.Client against an Azure-compatible Responses API endpoint:
// a unary POST for CreateResponse, and an SSE stream for CreateResponseStream, per spec §4.7.
package azure

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/config"
	"github.com/Laisky/llm-gateway/internal/logging"
	"github.com/Laisky/llm-gateway/internal/netutil"
)

// idleConnTimeout bounds how long a pooled connection sits unused before the transport reclaims
// it, mirroring the teacher's ~30s idle-reclaim window for its shared HTTP clients.
const idleConnTimeout = 30 * time.Second

// responsesEvent is the documented set of Azure-compatible SSE event types the client
// understands (spec §4.9); anything else is ignored rather than treated as an error, so the
// backend can add new event types without breaking older gateway builds.
const (
	eventCreated         = "response.created"
	eventOutputTextDelta = "response.output_text.delta"
	eventReasoningDelta  = "response.reasoning_text.delta"
	eventReasoningDone   = "response.reasoning_text.done"
	eventOutputItemAdded = "response.output_item.added"
	eventCompleted       = "response.completed"
	eventFailed          = "response.failed"
	eventError           = "error"
)

// Client talks to one Azure-compatible Responses API deployment.
type Client struct {
	baseURL string
	apiKey  string
	model   string

	http      *http.Client
	resources *backend.ResourceSet
}

// New validates creds and constructs a Client with a dedicated connection pool.
func New(creds config.BackendCredentials) (*Client, error) {
	if _, err := netutil.ValidateBackendBaseURL(creds.BaseURL); err != nil {
		return nil, errors.Wrap(err, "azure backend base url")
	}

	transport := &http.Transport{
		TLSNextProto:        make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     idleConnTimeout,
	}

	return &Client{
		baseURL:   strings.TrimRight(creds.BaseURL, "/"),
		apiKey:    creds.APIKey,
		model:     creds.Model,
		resources: backend.NewResourceSet(),
		http: &http.Client{
			Timeout:   creds.Timeout,
			Transport: transport,
		},
	}, nil
}

func (c *Client) buildRequestBody(req *backend.ResponsesRequest) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, val interface{}) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, val)
	}

	set("model", req.Model)
	set("input", req.Input)
	set("reasoning.effort", req.Reasoning.Effort)
	set("stream", req.Stream)
	if req.MaxOutputTokens > 0 {
		set("max_output_tokens", req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		set("temperature", *req.Temperature)
	}
	if req.TopP != nil {
		set("top_p", *req.TopP)
	}
	if req.PreviousResponseID != "" {
		set("previous_response_id", req.PreviousResponseID)
	}
	if len(req.Tools) > 0 {
		set("tools", req.Tools)
	}
	if req.ToolChoice != nil {
		set("tool_choice", req.ToolChoice)
	}
	if len(req.Stop) > 0 {
		set("stop", req.Stop)
	}
	if req.ResponseFormat != nil {
		set("response_format", req.ResponseFormat)
	}
	return body, err
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build azure request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)
	return httpReq, nil
}

func classifyHTTPStatus(status int, respBody []byte) error {
	msg := strings.TrimSpace(string(respBody))
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		return apierror.New(apierror.KindAuthentication, msg, nil)
	case status == http.StatusForbidden:
		return apierror.New(apierror.KindAuthorization, msg, nil)
	case status == http.StatusNotFound:
		return apierror.New(apierror.KindNotFound, msg, nil)
	case status == http.StatusTooManyRequests:
		return apierror.New(apierror.KindRateLimit, msg, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apierror.New(apierror.KindValidation, msg, nil)
	case status >= 500:
		return apierror.New(apierror.KindUpstream5xx, msg, nil)
	default:
		return apierror.New(apierror.KindUnknown, msg, nil)
	}
}

// CreateResponse performs one unary call against the Azure-compatible /responses endpoint.
func (c *Client) CreateResponse(ctx context.Context, req *backend.ResponsesRequest) (*backend.ResponsesResponse, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, errors.Wrap(err, "build request body")
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	res := c.resources.Track(nil)
	defer c.resources.Dispose(res)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, apierror.New(apierror.KindNetwork, "read azure response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPStatus(resp.StatusCode, buf.Bytes())
	}

	return parseUnaryResponse(buf.Bytes())
}

func parseUnaryResponse(raw []byte) (*backend.ResponsesResponse, error) {
	var wire struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		Model   string `json:"model"`
		Output  []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Status  string `json:"status"`
			ID      string `json:"id"`
			Name    string `json:"name"`
			Args    string `json:"arguments"`
		} `json:"output"`
		Usage struct {
			PromptTokens     int  `json:"prompt_tokens"`
			CompletionTokens int  `json:"completion_tokens"`
			TotalTokens      int  `json:"total_tokens"`
			ReasoningTokens  *int `json:"reasoning_tokens"`
		} `json:"usage"`
		FinishReason string `json:"finish_reason"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apierror.New(apierror.KindUnknown, "decode azure response", err)
	}

	out := &backend.ResponsesResponse{
		ID:      wire.ID,
		Created: wire.Created,
		Model:   wire.Model,
		Finish:  backend.FinishReason(wire.FinishReason),
		Usage: backend.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
			ReasoningTokens:  wire.Usage.ReasoningTokens,
		},
	}
	if out.Usage.TotalTokens == 0 {
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}

	for _, o := range wire.Output {
		switch o.Type {
		case "text", "output_text":
			out.Output = append(out.Output, backend.Output{Kind: backend.OutputText, Text: o.Text})
		case "reasoning":
			out.Output = append(out.Output, backend.Output{Kind: backend.OutputReasoning, ReasoningContent: o.Text, ReasoningStatus: o.Status})
		case "tool_call", "function_call":
			out.Output = append(out.Output, backend.Output{Kind: backend.OutputToolCall, ToolCallID: o.ID, ToolCallName: o.Name, ToolCallArguments: o.Args})
		}
	}
	return out, nil
}

// CreateResponseStream opens the Azure-compatible SSE stream and returns an iterator over its
// neutral chunks.
func (c *Client) CreateResponseStream(ctx context.Context, req *backend.ResponsesRequest) (backend.StreamIterator, error) {
	req.Stream = true
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, errors.Wrap(err, "build request body")
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	res := c.resources.Track(nil)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.resources.Dispose(res)
		return nil, classifyTransportErr(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		c.resources.Dispose(res)
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return nil, classifyHTTPStatus(resp.StatusCode, buf.Bytes())
	}

	return &streamIterator{
		body:      resp.Body,
		scanner:   bufio.NewScanner(resp.Body),
		resources: c.resources,
		resource:  res,
	}, nil
}

func classifyTransportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apierror.New(apierror.KindCanceled, "request canceled", ctx.Err())
	}
	return apierror.New(apierror.KindNetwork, "azure request failed", err)
}

// Healthy issues a short GET against the deployment's base URL. A non-2xx or transport error
// counts as unhealthy (spec §4.7).
func (c *Client) Healthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logging.From(ctx).Debug("azure health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Shutdown awaits in-flight resources draining, then reclaims idle pooled connections.
func (c *Client) Shutdown(ctx context.Context) error {
	c.resources.AwaitDrain(ctx)
	c.http.CloseIdleConnections()
	return nil
}

type streamIterator struct {
	body      interface{ Close() error }
	scanner   *bufio.Scanner
	resources *backend.ResourceSet
	resource  *backend.Resource
	closed    bool
}

// Next reads SSE frames until one carries a recognized event with content, or the stream ends.
func (s *streamIterator) Next(ctx context.Context) (*backend.ResponsesStreamChunk, bool, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, false, apierror.New(apierror.KindCanceled, "stream canceled", err)
		}

		line := s.scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			data, ok = strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		if evType := gjson.Get(data, "type").String(); evType == eventFailed || evType == eventError {
			return nil, false, apierror.New(apierror.KindUpstream5xx, "azure stream reported failure", nil)
		}

		chunk, handled := decodeEvent([]byte(data))
		if !handled {
			continue
		}
		return chunk, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, false, apierror.New(apierror.KindNetwork, "read azure stream", err)
	}
	return nil, false, nil
}

func decodeEvent(raw []byte) (*backend.ResponsesStreamChunk, bool) {
	evType := gjson.GetBytes(raw, "type").String()
	id := gjson.GetBytes(raw, "response.id").String()
	model := gjson.GetBytes(raw, "response.model").String()

	switch evType {
	case eventCreated:
		return nil, false

	case eventOutputItemAdded:
		return decodeOutputItemAdded(raw, id, model)

	case eventOutputTextDelta:
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{Kind: backend.OutputText, Text: gjson.GetBytes(raw, "delta").String()}},
		}, true

	case eventReasoningDelta:
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{Kind: backend.OutputReasoning, ReasoningContent: gjson.GetBytes(raw, "delta").String(), ReasoningStatus: "in_progress"}},
		}, true

	case eventReasoningDone:
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{Kind: backend.OutputReasoning, ReasoningContent: gjson.GetBytes(raw, "text").String(), ReasoningStatus: "completed"}},
		}, true

	case eventCompleted:
		usage := &backend.Usage{
			PromptTokens:     int(gjson.GetBytes(raw, "response.usage.prompt_tokens").Int()),
			CompletionTokens: int(gjson.GetBytes(raw, "response.usage.completion_tokens").Int()),
			TotalTokens:      int(gjson.GetBytes(raw, "response.usage.total_tokens").Int()),
		}
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model, Final: true,
			Finish: backend.FinishReason(gjson.GetBytes(raw, "response.finish_reason").String()),
			Usage:  usage,
		}, true

	default:
		// response.failed and error events are turned into errors by streamIterator.Next.
		return nil, false
	}
}

// decodeOutputItemAdded transforms the item nested in a response.output_item.added event into
// its neutral output shape (spec §4.9: "emit transformed item (text, reasoning, or function
// call)"). The item's own type discriminates which of the three it is; any other item type is
// treated the same as an unrecognized top-level event and dropped.
func decodeOutputItemAdded(raw []byte, id, model string) (*backend.ResponsesStreamChunk, bool) {
	switch gjson.GetBytes(raw, "item.type").String() {
	case "text", "output_text":
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{Kind: backend.OutputText, Text: gjson.GetBytes(raw, "item.text").String()}},
		}, true

	case "reasoning":
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{
				Kind:             backend.OutputReasoning,
				ReasoningContent: gjson.GetBytes(raw, "item.text").String(),
				ReasoningStatus:  gjson.GetBytes(raw, "item.status").String(),
			}},
		}, true

	case "tool_call", "function_call":
		return &backend.ResponsesStreamChunk{
			ID: id, Model: model,
			Output: []backend.Output{{
				Kind:              backend.OutputToolCall,
				ToolCallID:        gjson.GetBytes(raw, "item.id").String(),
				ToolCallName:      gjson.GetBytes(raw, "item.name").String(),
				ToolCallArguments: gjson.GetBytes(raw, "item.arguments").String(),
			}},
		}, true

	default:
		return nil, false
	}
}

// Close disposes the tracked ConnectionResource and closes the underlying body exactly once.
func (s *streamIterator) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.resources.Dispose(s.resource)
	return s.body.Close()
}
