package reasoning

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/convstore"
)

func TestAnalyzeMinimalByDefault(t *testing.T) {
	require.Equal(t, Minimal, Analyze(Signals{}))
}

func TestAnalyzeToolsFloorToMedium(t *testing.T) {
	require.Equal(t, Medium, Analyze(Signals{HasTools: true}))
}

func TestAnalyzeHighScoreFromManySignals(t *testing.T) {
	s := Signals{
		MessageCount:  11,
		ContentLength: 11_000,
		Metrics: convstore.Metrics{
			MessageCount:      10,
			TotalTokens:       30_000,
			ReasoningTokens:   12_000,
			ErrorCount:        3,
			AvgResponseTimeMs: 11_000,
		},
	}
	require.Equal(t, High, Analyze(s))
}

func TestMaxNeverLowersCallerHint(t *testing.T) {
	require.Equal(t, High, Max(High, Minimal))
	require.Equal(t, High, Max(Minimal, High))
}

func TestParseEffortDefaultsToMedium(t *testing.T) {
	require.Equal(t, Medium, ParseEffort("bogus"))
	require.Equal(t, Medium, ParseEffort(""))
	require.Equal(t, High, ParseEffort("high"))
}

func TestDetectCodeBlockAndKeyword(t *testing.T) {
	code, kw := DetectCodeBlockAndKeyword("```go\nfunc race condition() {}\n```")
	require.True(t, code)
	require.True(t, kw)
}
