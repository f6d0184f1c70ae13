// Package convstore implements the in-memory, TTL-evicting Conversation Store (spec §4.4):
// a bounded cache, not a shared mutable singleton of convenience (spec §9).
package convstore

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Laisky/llm-gateway/internal/corrid"
)

// Metrics is the running per-conversation metrics snapshot (spec §3 ConversationEntry.metrics).
type Metrics struct {
	MessageCount      int
	TotalTokens       int
	ReasoningTokens   int
	AvgResponseTimeMs float64
	ErrorCount        int
}

// Context carries the derived task-complexity score alongside the raw metrics.
type Context struct {
	TaskComplexity float64
}

// Entry is an immutable snapshot of one conversation's state (spec §3 ConversationEntry).
// Readers always see a copy; only the Store mutates the live record.
type Entry struct {
	ID                string
	CreatedAt         time.Time
	LastUpdatedAt     time.Time
	PreviousResponseID string
	Metrics           Metrics
	Context           Context
}

// MetricsDelta is what track/updateMetrics folds into a live Entry's running metrics.
type MetricsDelta struct {
	Tokens          int
	ReasoningTokens int
	ResponseTimeMs  float64
	IsError         bool
}

// Config mirrors spec §4.4's tunables and their documented defaults.
type Config struct {
	MaxAge              time.Duration
	CleanupInterval     time.Duration
	MaxStoredConversations int
}

// DefaultConfig returns maxAge=1h, cleanupInterval=5m, maxStoredConversations=1000.
func DefaultConfig() Config {
	return Config{MaxAge: time.Hour, CleanupInterval: 5 * time.Minute, MaxStoredConversations: 1000}
}

// Store is the process-wide conversation table (spec §9's admitted global state, when wired as
// a singleton) or an explicitly-passed collaborator otherwise; either wiring style calls Close
// on shutdown.
type Store struct {
	cfg   Config
	cache *gocache.Cache

	mu      sync.Mutex
	liveSet map[string]*Entry
}

// New constructs a Store and starts its background cleanup tick immediately.
func New(cfg Config) *Store {
	c := gocache.New(cfg.MaxAge, cfg.CleanupInterval)
	s := &Store{cfg: cfg, cache: c, liveSet: make(map[string]*Entry)}
	c.OnEvicted(func(id string, _ interface{}) {
		s.mu.Lock()
		delete(s.liveSet, id)
		s.mu.Unlock()
	})
	return s
}

// Close is the Store's shutdown hook. It releases nothing: go-cache exposes no call that stops
// its janitor goroutine, so the background cleanup tick keeps running after Close returns.
func (s *Store) Close() {
}

// ExtractConversationID implements spec §4.4's header precedence: x-conversation-id,
// conversation-id, x-session-id, session-id, x-thread-id, thread-id (first non-empty wins),
// else "conv-<correlationId>".
func ExtractConversationID(headers map[string][]string, fallbackCorrelationID string) string {
	candidates := []string{
		"x-conversation-id", "conversation-id",
		"x-session-id", "session-id",
		"x-thread-id", "thread-id",
	}
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 && v[0] != "" {
			lower[strings.ToLower(k)] = v[0]
		}
	}
	for _, c := range candidates {
		if v, ok := lower[c]; ok && v != "" {
			return v
		}
	}
	if fallbackCorrelationID == "" {
		fallbackCorrelationID = corrid.New()
	}
	return "conv-" + fallbackCorrelationID
}

// Track increments messageCount by 1, accumulates delta's token counts into the running
// metrics, folds responseTimeMs into a running mean, and sets previousResponseId. A new Entry
// is created on the first turn of a conversation.
func (s *Store) Track(conversationID, responseID string, delta MetricsDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(conversationID)
	n := e.Metrics.MessageCount
	e.Metrics.MessageCount = n + 1
	e.Metrics.TotalTokens += delta.Tokens
	e.Metrics.ReasoningTokens += delta.ReasoningTokens
	if delta.IsError {
		e.Metrics.ErrorCount++
	}
	// running mean: avg' = avg + (x - avg) / n'
	nPrime := float64(e.Metrics.MessageCount)
	e.Metrics.AvgResponseTimeMs += (delta.ResponseTimeMs - e.Metrics.AvgResponseTimeMs) / nPrime
	e.PreviousResponseID = responseID
	e.LastUpdatedAt = time.Now()

	s.putLocked(e)
}

// UpdateMetrics folds delta into the conversation's running metrics without advancing
// previousResponseId; used to record error outcomes on the failure path.
func (s *Store) UpdateMetrics(conversationID string, delta MetricsDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(conversationID)
	if delta.IsError {
		e.Metrics.ErrorCount++
	}
	e.Metrics.TotalTokens += delta.Tokens
	e.Metrics.ReasoningTokens += delta.ReasoningTokens
	e.LastUpdatedAt = time.Now()
	s.putLocked(e)
}

// GetPreviousResponseID returns the last tracked response id for conversationID, or "" if none.
func (s *Store) GetPreviousResponseID(conversationID string) string {
	e := s.snapshot(conversationID)
	if e == nil {
		return ""
	}
	return e.PreviousResponseID
}

// GetContext returns an immutable snapshot of the conversation's derived context.
func (s *Store) GetContext(conversationID string) Context {
	e := s.snapshot(conversationID)
	if e == nil {
		return Context{}
	}
	return e.Context
}

// GetMetrics returns an immutable snapshot of the conversation's running metrics.
func (s *Store) GetMetrics(conversationID string) Metrics {
	e := s.snapshot(conversationID)
	if e == nil {
		return Metrics{}
	}
	return e.Metrics
}

// SetTaskComplexity records the Analyzer's derived score for future effort decisions.
func (s *Store) SetTaskComplexity(conversationID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreateLocked(conversationID)
	e.Context.TaskComplexity = score
	s.putLocked(e)
}

func (s *Store) snapshot(conversationID string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveSet[conversationID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// getOrCreateLocked must be called with s.mu held.
func (s *Store) getOrCreateLocked(conversationID string) *Entry {
	if e, ok := s.liveSet[conversationID]; ok {
		return e
	}
	now := time.Now()
	return &Entry{ID: conversationID, CreatedAt: now, LastUpdatedAt: now}
}

// putLocked stores e, resets its TTL, and evicts the LRU-by-lastUpdatedAt tail if the store is
// now over capacity. Must be called with s.mu held.
func (s *Store) putLocked(e *Entry) {
	s.liveSet[e.ID] = e
	s.cache.Set(e.ID, struct{}{}, s.cfg.MaxAge)

	if s.cfg.MaxStoredConversations <= 0 || len(s.liveSet) <= s.cfg.MaxStoredConversations {
		return
	}

	for len(s.liveSet) > s.cfg.MaxStoredConversations {
		var oldestID string
		var oldestTime time.Time
		first := true
		for id, entry := range s.liveSet {
			if first || entry.LastUpdatedAt.Before(oldestTime) {
				oldestID = id
				oldestTime = entry.LastUpdatedAt
				first = false
			}
		}
		// The cache item is left to expire on its own: cache.Delete would run the OnEvicted
		// callback, which takes s.mu and would deadlock here.
		delete(s.liveSet, oldestID)
	}
}

// Cleanup removes entries whose lastUpdatedAt is older than maxAge, matching the background
// tick's behavior; exposed for tests and for an explicit out-of-band sweep.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.cfg.MaxAge)
	for id, e := range s.liveSet {
		if e.LastUpdatedAt.Before(cutoff) {
			// cache.Delete is not called: its OnEvicted callback takes s.mu (see putLocked).
			delete(s.liveSet, id)
		}
	}
}

// Len reports the current number of tracked conversations, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liveSet)
}
