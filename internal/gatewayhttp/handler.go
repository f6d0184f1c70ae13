// Package gatewayhttp wires the gin HTTP surface: format detection, normalization, routing,
// resilience, backend dispatch, denormalization, and streaming into the three caller-facing
// endpoints (spec §4.1-§4.11, §6 "Request lifecycle").
package gatewayhttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/convstore"
	"github.com/Laisky/llm-gateway/internal/corrid"
	"github.com/Laisky/llm-gateway/internal/denormalize"
	"github.com/Laisky/llm-gateway/internal/dialect"
	"github.com/Laisky/llm-gateway/internal/fallback"
	"github.com/Laisky/llm-gateway/internal/logging"
	"github.com/Laisky/llm-gateway/internal/metrics"
	"github.com/Laisky/llm-gateway/internal/modelrouter"
	"github.com/Laisky/llm-gateway/internal/normalize"
	"github.com/Laisky/llm-gateway/internal/reasoning"
	"github.com/Laisky/llm-gateway/internal/resilience"
	"github.com/Laisky/llm-gateway/internal/streaming"
)

// Deps are the collaborators a Handler dispatches every request through.
type Deps struct {
	Router                    *modelrouter.Router
	ConvStore                 *convstore.Store
	Breakers                  *resilience.Registry
	RetryCfg                  map[backend.Provider]resilience.RetryConfig
	Azure                     backend.Client
	Bedrock                   backend.Client
	ContentSecurityValidation bool
}

// retryConfig selects the resilience.RetryConfig bound to p (spec §6's per-backend config
// table, §4.6's per-backend timeout binding): Azure and Bedrock retry/time out independently.
func (h *Handler) retryConfig(p backend.Provider) resilience.RetryConfig {
	return h.deps.RetryCfg[p]
}

// Handler serves the three caller-facing endpoints.
type Handler struct {
	deps Deps
}

// New constructs a Handler from deps.
func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes mounts the gateway's endpoints on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/messages", h.handle)
	r.POST("/v1/chat/completions", h.handle)
	r.POST("/v1/completions", h.handle)
}

func (h *Handler) client(p backend.Provider) backend.Client {
	if p == backend.ProviderBedrock {
		return h.deps.Bedrock
	}
	return h.deps.Azure
}

func (h *Handler) handle(c *gin.Context) {
	start := time.Now()
	correlationID := corrid.New()
	ctx := logging.WithCorrelationID(gmw.Ctx(c), correlationID)
	lg := logging.From(ctx)

	c.Header("X-Correlation-ID", correlationID)

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.writeError(c, ctx, apierror.New(apierror.KindValidation, "failed to read request body", err), dialect.Claude, correlationID)
		return
	}

	var bodyMap map[string]interface{}
	_ = json.Unmarshal(rawBody, &bodyMap)
	d := dialect.Detect(c.Request.URL.Path, bodyMap)

	nr, err := h.parseRequest(d, rawBody)
	if err != nil {
		h.writeError(c, ctx, toFailure(err), d, correlationID)
		return
	}

	conversationID := convstore.ExtractConversationID(c.Request.Header, correlationID)
	previousResponseID := h.deps.ConvStore.GetPreviousResponseID(conversationID)

	signals := h.buildSignals(nr, conversationID)
	effort := reasoning.Analyze(signals)
	h.deps.ConvStore.SetTaskComplexity(conversationID, float64(effort))

	rr := normalize.ToResponsesRequest(nr, previousResponseID, effort)

	decision, err := h.deps.Router.Route(rr.Model)
	if err != nil {
		h.writeError(c, ctx, apierror.New(apierror.KindValidation, err.Error(), err), d, correlationID)
		return
	}
	rr.Model = decision.BackendModel

	outcome := "ok"
	defer func() {
		metrics.RequestsTotal.WithLabelValues(string(d), string(decision.Provider), outcome).Inc()
		metrics.RequestDuration.WithLabelValues(string(d), string(decision.Provider)).Observe(time.Since(start).Seconds())
	}()

	client := h.client(decision.Provider)
	if client == nil {
		outcome = "error"
		h.writeError(c, ctx, apierror.New(apierror.KindValidation, "backend provider not configured: "+string(decision.Provider), nil), d, correlationID)
		return
	}

	key := resilience.Key{Provider: string(decision.Provider), Operation: "create_response"}

	if rr.Stream {
		h.handleStream(c, ctx, client, key, rr, d, conversationID, correlationID, &outcome)
		return
	}

	retryCfg := h.retryConfig(decision.Provider)
	result, err := h.deps.Breakers.Execute(ctx, key, func(ctx context.Context) (any, error) {
		return resilience.Do(ctx, retryCfg, func(ctx context.Context) (any, error) {
			return client.CreateResponse(ctx, rr)
		})
	})

	if err != nil {
		f := toFailure(err)
		h.deps.ConvStore.UpdateMetrics(conversationID, convstore.MetricsDelta{IsError: true})
		if fallback.Eligible(f) {
			outcome = "fallback"
			metrics.FallbacksTotal.WithLabelValues(string(d)).Inc()
			lg.Warn("degrading to fallback response", zap.String("kind", string(f.Kind)), zap.Error(f))
			c.JSON(http.StatusOK, fallback.Render(rr.Model, d, correlationID))
			return
		}
		outcome = "error"
		h.writeError(c, ctx, f, d, correlationID)
		return
	}

	resp := result.(*backend.ResponsesResponse)
	h.deps.ConvStore.Track(conversationID, resp.ID, convstore.MetricsDelta{
		Tokens:          resp.Usage.TotalTokens,
		ReasoningTokens: derefInt(resp.Usage.ReasoningTokens),
		ResponseTimeMs:  float64(time.Since(start).Milliseconds()),
	})

	if d == dialect.Claude {
		body := denormalize.ToClaude(resp)
		body.CorrelationID = correlationID
		c.JSON(http.StatusOK, body)
		return
	}
	body := denormalize.ToOpenAI(resp)
	body.CorrelationID = correlationID
	c.JSON(http.StatusOK, body)
}

func (h *Handler) handleStream(c *gin.Context, ctx context.Context, client backend.Client, key resilience.Key, rr *backend.ResponsesRequest, d dialect.Dialect, conversationID, correlationID string, outcome *string) {
	lg := logging.From(ctx)
	start := time.Now()

	// Bedrock offers no native incremental delivery (spec §4.7); its streaming path always
	// fragments a completed unary result instead of attempting CreateResponseStream, so a
	// call that can never succeed never counts against its circuit breaker.
	nativeStreaming := key.Provider != string(backend.ProviderBedrock)
	retryCfg := h.retryConfig(backend.Provider(key.Provider))

	var it backend.StreamIterator
	var err error
	if nativeStreaming {
		var result any
		result, err = h.deps.Breakers.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return resilience.Do(ctx, retryCfg, func(ctx context.Context) (any, error) {
				return client.CreateResponseStream(ctx, rr)
			})
		})
		if err == nil {
			it = result.(backend.StreamIterator)
		}
	} else {
		var result any
		result, err = h.deps.Breakers.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return resilience.Do(ctx, retryCfg, func(ctx context.Context) (any, error) {
				return client.CreateResponse(ctx, rr)
			})
		})
		if err == nil {
			it = streaming.NewSimulated(result.(*backend.ResponsesResponse))
		}
	}

	if err != nil {
		f := toFailure(err)
		h.deps.ConvStore.UpdateMetrics(conversationID, convstore.MetricsDelta{IsError: true})
		if fallback.Eligible(f) {
			*outcome = "fallback"
			metrics.FallbacksTotal.WithLabelValues(string(d)).Inc()
			streaming.WriteSSEHeaders(c.Writer)
			c.Writer.WriteHeader(http.StatusOK)
			_ = streaming.Run(ctx, c.Writer, streaming.NewSimulated(fallback.Synthesize(rr.Model)), d)
			return
		}
		*outcome = "error"
		status, body := apierror.Envelope(f, d, correlationID)
		c.JSON(status, body)
		return
	}

	streaming.WriteSSEHeaders(c.Writer)
	c.Writer.WriteHeader(http.StatusOK)

	if err := streaming.Run(ctx, c.Writer, it, d); err != nil {
		*outcome = "error"
		lg.Warn("stream terminated with error", zap.Error(err))
	}
	h.deps.ConvStore.Track(conversationID, rr.PreviousResponseID, convstore.MetricsDelta{
		ResponseTimeMs: float64(time.Since(start).Milliseconds()),
	})
}

func (h *Handler) parseRequest(d dialect.Dialect, raw []byte) (*normalize.NormalizedRequest, error) {
	if d == dialect.Claude {
		return normalize.ParseClaude(raw, h.deps.ContentSecurityValidation)
	}
	return normalize.ParseOpenAI(raw, h.deps.ContentSecurityValidation)
}

func (h *Handler) buildSignals(nr *normalize.NormalizedRequest, conversationID string) reasoning.Signals {
	var contentLen, questionMarks int
	var hasCodeBlock, hasKeyword bool
	for _, m := range nr.Messages {
		contentLen += utf8.RuneCountInString(m.Text)
		questionMarks += strings.Count(m.Text, "?")
		cb, kw := reasoning.DetectCodeBlockAndKeyword(m.Text)
		hasCodeBlock = hasCodeBlock || cb
		hasKeyword = hasKeyword || kw
	}
	return reasoning.Signals{
		MessageCount:         len(nr.Messages),
		HasTools:             len(nr.Tools) > 0,
		ContentLength:        contentLen,
		HasCodeBlock:         hasCodeBlock,
		HasComplexityKeyword: hasKeyword,
		QuestionMarks:        questionMarks,
		Metrics:              h.deps.ConvStore.GetMetrics(conversationID),
	}
}

func (h *Handler) writeError(c *gin.Context, ctx context.Context, f *apierror.Failure, d dialect.Dialect, correlationID string) {
	status, body := apierror.Envelope(f, d, correlationID)
	c.JSON(status, body)
}

func toFailure(err error) *apierror.Failure {
	if f, ok := err.(*apierror.Failure); ok {
		return f
	}
	return apierror.New(apierror.KindUnknown, err.Error(), err)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
