package apierror

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/dialect"
)

func TestEnvelopeClaudeShape(t *testing.T) {
	f := New(KindRateLimit, "too many requests from 203.0.113.5", nil)
	status, body := Envelope(f, dialect.Claude, "corr-1")
	require.Equal(t, 429, status)
	cb, ok := body.(ClaudeErrorBody)
	require.True(t, ok)
	require.Equal(t, "error", cb.Type)
	require.Equal(t, "corr-1", cb.CorrelationID)
	require.NotEmpty(t, cb.Timestamp)
}

func TestEnvelopeOpenAIShape(t *testing.T) {
	f := New(KindValidation, "missing field model", nil)
	status, body := Envelope(f, dialect.OpenAI, "corr-2")
	require.Equal(t, 400, status)
	ob, ok := body.(OpenAIErrorBody)
	require.True(t, ok)
	require.Equal(t, string(KindValidation), ob.Error.Type)
	require.Equal(t, "corr-2", ob.CorrelationID)
}

func TestEnvelopeSanitizesMessage(t *testing.T) {
	f := New(KindUnknown, "upstream said Bearer sk-leaked12345 was bad", nil)
	_, body := Envelope(f, dialect.OpenAI, "corr-3")
	ob := body.(OpenAIErrorBody)
	require.NotContains(t, ob.Error.Message, "sk-leaked12345")
}
