// Package bedrock implements backend.Client against AWS Bedrock's Anthropic-on-Bedrock
// invocation contract. Bedrock is unary-only per spec §4.7; CreateResponseStream always
// returns ErrStreamingUnsupported so the caller falls back to the Streaming Engine's
// simulated mode (internal/streaming.Simulated) over a real CreateResponse call.
package bedrock

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/config"
)

// ErrStreamingUnsupported is returned by CreateResponseStream; Bedrock's InvokeModel contract
// offers no incremental delivery path the gateway is willing to depend on, so streaming callers
// must fall back to fragmenting a unary CreateResponse result.
var ErrStreamingUnsupported = errors.New("bedrock backend does not support native streaming")

// anthropicVersion is the Bedrock wire-format version the Anthropic models on Bedrock expect.
const anthropicVersion = "bedrock-2023-05-31"

// Client talks to one Bedrock foundation model via InvokeModel.
type Client struct {
	modelID string
	rt      *bedrockruntime.Client
	ctrl    *bedrock.Client
	awsCfg  awssdk.Config
	timeout time.Duration

	resources *backend.ResourceSet
}

// New loads AWS config for creds.Region (falling back to the SDK's default resolution chain
// when empty) and constructs a Client bound to creds.Model.
func New(ctx context.Context, creds config.BackendCredentials) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	return &Client{
		modelID:   creds.Model,
		rt:        bedrockruntime.NewFromConfig(cfg),
		ctrl:      bedrock.NewFromConfig(cfg),
		awsCfg:    cfg,
		timeout:   creds.Timeout,
		resources: backend.NewResourceSet(),
	}, nil
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	System           string           `json:"system,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	StopSequences    []string         `json:"stop_sequences,omitempty"`
}

func buildInvokeBody(req *backend.ResponsesRequest) ([]byte, error) {
	br := bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxOutputTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		StopSequences:    req.Stop,
	}
	if br.MaxTokens == 0 {
		br.MaxTokens = 4096
	}

	switch v := req.Input.(type) {
	case string:
		br.Messages = []bedrockMessage{{Role: "user", Content: v}}
	case []backend.Message:
		for _, m := range v {
			if m.Role == "system" {
				br.System = m.Content
				continue
			}
			br.Messages = append(br.Messages, bedrockMessage{Role: m.Role, Content: m.Content})
		}
	default:
		return nil, errors.Errorf("unsupported input shape for bedrock: %T", req.Input)
	}

	return json.Marshal(br)
}

type bedrockResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseInvokeResponse(raw []byte, model string) (*backend.ResponsesResponse, error) {
	var wire bedrockResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apierror.New(apierror.KindUnknown, "decode bedrock response", err)
	}

	out := &backend.ResponsesResponse{
		ID:    wire.ID,
		Model: model,
		Usage: backend.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		},
	}

	switch wire.StopReason {
	case "max_tokens":
		out.Finish = backend.FinishLength
	case "tool_use":
		out.Finish = backend.FinishToolCalls
	default:
		out.Finish = backend.FinishStop
	}

	for _, c := range wire.Content {
		switch c.Type {
		case "text":
			out.Output = append(out.Output, backend.Output{Kind: backend.OutputText, Text: c.Text})
		case "tool_use":
			out.Output = append(out.Output, backend.Output{
				Kind: backend.OutputToolCall, ToolCallID: c.ID, ToolCallName: c.Name, ToolCallArguments: string(c.Input),
			})
		}
	}
	return out, nil
}

// CreateResponse invokes the configured Bedrock model and translates its reply to the neutral
// shape.
func (c *Client) CreateResponse(ctx context.Context, req *backend.ResponsesRequest) (*backend.ResponsesResponse, error) {
	body, err := buildInvokeBody(req)
	if err != nil {
		return nil, apierror.New(apierror.KindValidation, err.Error(), err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res := c.resources.Track(nil)
	defer c.resources.Dispose(res)

	out, err := c.rt.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     awssdk.String(c.modelID),
		ContentType: awssdk.String("application/json"),
		Accept:      awssdk.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, classifyBedrockErr(ctx, err)
	}

	return parseInvokeResponse(out.Body, req.Model)
}

// CreateResponseStream always fails with ErrStreamingUnsupported (spec §4.7: Bedrock is
// unary-only); callers should catch this and fragment a CreateResponse result instead.
func (c *Client) CreateResponseStream(ctx context.Context, req *backend.ResponsesRequest) (backend.StreamIterator, error) {
	return nil, ErrStreamingUnsupported
}

// Healthy issues a GET against Bedrock's foundation-models listing endpoint (spec §6): a
// read-only control-plane call confirms both AWS credentials and network reachability without
// invoking (and billing for) an actual model.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.ctrl.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	return err == nil
}

// Shutdown awaits in-flight resources draining; the AWS SDK v2 HTTP client has no explicit
// close, so there is nothing further to release.
func (c *Client) Shutdown(ctx context.Context) error {
	c.resources.AwaitDrain(ctx)
	return nil
}

func classifyBedrockErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apierror.New(apierror.KindCanceled, "request canceled", ctx.Err())
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ThrottlingException"):
		return apierror.New(apierror.KindRateLimit, msg, err)
	case strings.Contains(msg, "AccessDeniedException"):
		return apierror.New(apierror.KindAuthorization, msg, err)
	case strings.Contains(msg, "ValidationException"):
		return apierror.New(apierror.KindValidation, msg, err)
	case strings.Contains(msg, "ResourceNotFoundException"):
		return apierror.New(apierror.KindNotFound, msg, err)
	case strings.Contains(msg, "ServiceUnavailableException"), strings.Contains(msg, "InternalServerException"):
		return apierror.New(apierror.KindUpstream5xx, msg, err)
	default:
		return apierror.New(apierror.KindNetwork, msg, err)
	}
}
