// Package backend defines the neutral Responses-API-shaped request/response types every
// provider translates to/from (spec §3 "Neutral shape"), and the Client interface each
// provider implementation (azure, bedrock) satisfies.
package backend

import "context"

// Provider identifies which backend a RoutingDecision points at.
type Provider string

const (
	ProviderAzure   Provider = "azure"
	ProviderBedrock Provider = "bedrock"
)

// Message is one entry of a multi-message ResponsesRequest.Input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool is the neutral function-tool shape translated from either caller dialect.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction carries a tool's callable surface.
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// ToolChoice is the neutral tool_choice shape; String is set for "auto"/"none"/"required",
// Function is set for a forced single-tool choice.
type ToolChoice struct {
	String   string
	Function *ToolChoiceFunction
}

// ToolChoiceFunction names the single tool a ToolChoice forces.
type ToolChoiceFunction struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// Reasoning carries the effort hint passed through to the backend.
type Reasoning struct {
	Effort string `json:"effort"`
}

// ResponsesRequest is the neutral backend-facing request shape (spec §3).
type ResponsesRequest struct {
	Model             string      `json:"model"`
	Input             interface{} `json:"input"` // string or []Message
	Reasoning         Reasoning   `json:"reasoning"`
	MaxOutputTokens   int         `json:"max_output_tokens,omitempty"`
	Temperature       *float64    `json:"temperature,omitempty"`
	TopP              *float64    `json:"top_p,omitempty"`
	Stream            bool        `json:"stream"`
	PreviousResponseID string     `json:"previous_response_id,omitempty"`
	Tools             []Tool      `json:"tools,omitempty"`
	ToolChoice        *ToolChoice `json:"tool_choice,omitempty"`
	Stop              []string    `json:"stop,omitempty"`
	ResponseFormat    interface{} `json:"response_format,omitempty"`
}

// OutputKind tags a ResponsesResponse/ResponsesStreamChunk output variant.
type OutputKind string

const (
	OutputText      OutputKind = "text"
	OutputReasoning OutputKind = "reasoning"
	OutputToolCall  OutputKind = "tool_call"
)

// Output is a tagged-union output item; only the fields matching Kind are meaningful.
type Output struct {
	Kind OutputKind

	Text string // OutputText

	ReasoningContent string // OutputReasoning
	ReasoningStatus  string // "in_progress" | "completed"

	ToolCallID        string // OutputToolCall
	ToolCallName      string
	ToolCallArguments string
}

// Usage mirrors the neutral usage block (spec §3); ReasoningTokens is optional.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	ReasoningTokens  *int `json:"reasoning_tokens,omitempty"`
}

// FinishReason is the backend's length/stop indicator, consulted by the denormalizer.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
)

// ResponsesResponse is the neutral backend response shape (spec §3).
type ResponsesResponse struct {
	ID       string
	Created  int64
	Model    string
	Output   []Output
	Usage    Usage
	Finish   FinishReason
}

// ResponsesStreamChunk is one neutral stream event (spec §3); Usage is populated only on the
// final chunk, and Final marks it as such.
type ResponsesStreamChunk struct {
	ID      string
	Created int64
	Model   string
	Output  []Output
	Usage   *Usage
	Final   bool
	Finish  FinishReason
}

// Client is the interface each provider's backend client implements (spec §4.7).
type Client interface {
	CreateResponse(ctx context.Context, req *ResponsesRequest) (*ResponsesResponse, error)
	CreateResponseStream(ctx context.Context, req *ResponsesRequest) (StreamIterator, error)
	// Healthy reports whether the backend's health probe currently succeeds.
	Healthy(ctx context.Context) bool
	// Shutdown drains in-flight ConnectionResources with a bounded grace period.
	Shutdown(ctx context.Context) error
}

// StreamIterator yields ResponsesStreamChunk values in order. Next returns (nil, false, nil)
// when the stream is exhausted, or a non-nil error when it fails; Close disposes the
// underlying ConnectionResource and must be safe to call more than once.
type StreamIterator interface {
	Next(ctx context.Context) (chunk *ResponsesStreamChunk, ok bool, err error)
	Close() error
}
