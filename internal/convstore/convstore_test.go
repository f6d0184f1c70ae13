package convstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackAccumulatesAndAdvancesPreviousResponseID(t *testing.T) {
	s := New(Config{MaxAge: time.Hour, CleanupInterval: time.Hour, MaxStoredConversations: 1000})

	s.Track("c1", "r1", MetricsDelta{Tokens: 10, ResponseTimeMs: 100})
	s.Track("c1", "r2", MetricsDelta{Tokens: 20, ResponseTimeMs: 200})

	require.Equal(t, "r2", s.GetPreviousResponseID("c1"))
	require.Equal(t, 2, s.GetMetrics("c1").MessageCount)
	require.Equal(t, 30, s.GetMetrics("c1").TotalTokens)
}

func TestEvictionBoundKeepsMostRecentlyUpdated(t *testing.T) {
	s := New(Config{MaxAge: time.Hour, CleanupInterval: time.Hour, MaxStoredConversations: 5})

	for i := 0; i < 8; i++ {
		s.Track(idFor(i), "r", MetricsDelta{})
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, 5, s.Len())
	// the 3 oldest (0,1,2) should have been evicted; the 5 most recent survive.
	for i := 0; i < 3; i++ {
		require.Empty(t, s.GetPreviousResponseID(idFor(i)))
	}
	for i := 3; i < 8; i++ {
		require.Equal(t, "r", s.GetPreviousResponseID(idFor(i)))
	}
}

func TestUpdateMetricsRecordsErrorsWithoutAdvancingResponseID(t *testing.T) {
	s := New(Config{MaxAge: time.Hour, CleanupInterval: time.Hour, MaxStoredConversations: 10})
	s.Track("c1", "r1", MetricsDelta{})
	s.UpdateMetrics("c1", MetricsDelta{IsError: true})

	m := s.GetMetrics("c1")
	require.Equal(t, 1, m.ErrorCount)
	require.LessOrEqual(t, m.ErrorCount, m.MessageCount+1)
	require.Equal(t, "r1", s.GetPreviousResponseID("c1"))
}

func TestExtractConversationIDPrecedence(t *testing.T) {
	headers := map[string][]string{
		"X-Session-Id":      {"sess-1"},
		"X-Conversation-Id": {"conv-1"},
	}
	require.Equal(t, "conv-1", ExtractConversationID(headers, "fallback"))

	require.Equal(t, "sess-1", ExtractConversationID(map[string][]string{"x-session-id": {"sess-1"}}, "fallback"))

	require.Equal(t, "conv-fallback", ExtractConversationID(map[string][]string{}, "fallback"))
}

func idFor(i int) string {
	return string(rune('a' + i))
}
