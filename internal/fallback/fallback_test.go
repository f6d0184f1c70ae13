package fallback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/denormalize"
	"github.com/Laisky/llm-gateway/internal/dialect"
)

func TestEligibleExcludesCallerFaultKinds(t *testing.T) {
	for _, k := range []apierror.Kind{apierror.KindValidation, apierror.KindAuthentication, apierror.KindNotFound, apierror.KindRateLimit} {
		require.False(t, Eligible(apierror.New(k, "x", nil)), "kind %s should not be eligible", k)
	}
}

func TestEligibleIncludesUpstreamAndUnknown(t *testing.T) {
	for _, k := range []apierror.Kind{apierror.KindUpstream5xx, apierror.KindCircuitOpen, apierror.KindUnknown, apierror.KindTimeout, apierror.KindNetwork} {
		require.True(t, Eligible(apierror.New(k, "x", nil)), "kind %s should be eligible", k)
	}
}

func TestRenderClaudeShapesApology(t *testing.T) {
	out := Render("claude-3-5-sonnet-20241022", dialect.Claude, "corr-1")
	cr, ok := out.(*denormalize.ClaudeResponse)
	require.True(t, ok)
	require.Equal(t, Message, cr.Content[0].Text)
	require.Equal(t, "corr-1", cr.CorrelationID)
}

func TestRenderOpenAIShapesApology(t *testing.T) {
	out := Render("gpt-4o", dialect.OpenAI, "corr-2")
	or, ok := out.(*denormalize.OpenAIResponse)
	require.True(t, ok)
	require.Equal(t, Message, or.Choices[0].Message.Content)
	require.Equal(t, "corr-2", or.CorrelationID)
}
