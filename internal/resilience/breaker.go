// Package resilience implements the per-backend circuit breaker and retry strategy
// composition from spec §4.6: the breaker wraps the retry which wraps the backend call.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/metrics"
)

// BreakerConfig mirrors the defaults in spec §4.6.
type BreakerConfig struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
}

// DefaultBreakerConfig returns the spec's documented defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
}

// Key identifies one breaker instance, keyed by (provider, operation) per spec §3.
type Key struct {
	Provider  string
	Operation string
}

// Registry is the process-wide circuit breaker registry (spec §9's admitted global state).
// Every lookup and lazy creation of an entry happens under one mutex; calls on a breaker once
// obtained rely on the gobreaker instance's own synchronization.
type Registry struct {
	cfg BreakerConfig
	mu  sync.Mutex
	set map[Key]*gobreaker.CircuitBreaker[any]
}

// NewRegistry constructs a Registry using cfg for every breaker it lazily creates.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{cfg: cfg, set: make(map[Key]*gobreaker.CircuitBreaker[any])}
}

func (r *Registry) get(key Key) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.set[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        key.Provider + ":" + key.Operation,
		MaxRequests: 1, // one successful probe closes the breaker, per spec
		Timeout:     r.cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Only expected kinds (Network, Timeout, Upstream5xx) count toward tripping;
			// client errors (4xx except 429, which classifies as RateLimit/retryable
			// elsewhere) must not trip the breaker.
			if f, ok := err.(*apierror.Failure); ok {
				return !f.Kind.Expected()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitStateTransitions.WithLabelValues(key.Provider, key.Operation, to.String()).Inc()
		},
	})
	r.set[key] = cb
	return cb
}

// State reports the current Closed/Open/HalfOpen state for a key, for observability/tests.
func (r *Registry) State(key Key) gobreaker.State {
	return r.get(key).State()
}

// Execute runs call through the breaker identified by key. When the breaker is open, call is
// never invoked and a KindCircuitOpen Failure is returned instead.
func (r *Registry) Execute(ctx context.Context, key Key, call func(ctx context.Context) (any, error)) (any, error) {
	cb := r.get(key)

	result, err := cb.Execute(func() (any, error) {
		return call(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apierror.New(apierror.KindCircuitOpen, "circuit open", err)
	}
	return result, err
}
