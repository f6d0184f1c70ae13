// Package metrics defines the prometheus counters and histograms the gateway core feeds as it
// processes requests (spec §A.5 "domain dependency wiring"). Registration happens against a package-level
// registry rather than the global default one, so cmd/server controls exactly what gets served.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the collector set the gateway registers its metrics against.
var Registry = prometheus.NewRegistry()

var (
	// RequestsTotal counts completed requests by dialect, backend provider, and outcome
	// ("ok", "fallback", "error").
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_requests_total",
		Help: "Total requests processed, labeled by dialect, backend, and outcome.",
	}, []string{"dialect", "backend", "outcome"})

	// RequestDuration observes end-to-end handler latency in seconds.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_gateway_request_duration_seconds",
		Help:    "End-to-end request handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dialect", "backend"})

	// RetriesTotal counts retry attempts issued by the resilience layer, labeled by the
	// failure kind that triggered them.
	RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_retries_total",
		Help: "Retry attempts issued, labeled by triggering failure kind.",
	}, []string{"kind"})

	// CircuitStateTransitions counts breaker state transitions by (provider, operation, to-state).
	CircuitStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_circuit_state_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"provider", "operation", "state"})

	// FallbacksTotal counts graceful-degradation responses served in place of a raw failure.
	FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_fallbacks_total",
		Help: "Responses served via the graceful-degradation hook.",
	}, []string{"dialect"})

	// ConversationStoreSize reports the current entry count of the conversation store.
	ConversationStoreSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "llm_gateway_conversation_store_entries",
		Help: "Current number of tracked conversation entries.",
	})
)

func init() {
	Registry.MustRegister(RequestsTotal, RequestDuration, RetriesTotal, CircuitStateTransitions, FallbacksTotal, ConversationStoreSize)
}
