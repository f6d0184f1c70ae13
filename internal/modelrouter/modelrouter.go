// Package modelrouter implements the Model Router (spec §4.5): maps a requested model alias
// to a (provider, backendModel) pair using a configured routing table with a default fallback.
package modelrouter

import (
	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/backend"
)

// Entry is one configured routing table row.
type Entry struct {
	Provider     backend.Provider
	BackendModel string
	Aliases      []string
}

// Decision is the result of routing (spec §3 RoutingDecision).
type Decision struct {
	Provider       backend.Provider
	RequestedModel string
	BackendModel   string
}

// Config is the routing table plus its default fallback.
type Config struct {
	Entries         []Entry
	DefaultProvider backend.Provider
	DefaultModel    string
}

// Router resolves a requested model name to a RoutingDecision.
type Router struct {
	cfg       Config
	available map[backend.Provider]bool
}

// New constructs a Router. available lists which providers currently have usable credentials
// (spec §4.5: "If the routed provider is not configured... fail with Validation").
func New(cfg Config, available map[backend.Provider]bool) *Router {
	return &Router{cfg: cfg, available: available}
}

// Route resolves requestedModel by exact, case-sensitive match against each entry's aliases or
// backendModel, first match wins; falls back to the configured default, preserving
// requestedModel for echo-back.
func (r *Router) Route(requestedModel string) (Decision, error) {
	for _, e := range r.cfg.Entries {
		if e.BackendModel == requestedModel {
			return r.finish(e.Provider, requestedModel, e.BackendModel)
		}
		for _, a := range e.Aliases {
			if a == requestedModel {
				return r.finish(e.Provider, requestedModel, e.BackendModel)
			}
		}
	}
	return r.finish(r.cfg.DefaultProvider, requestedModel, r.cfg.DefaultModel)
}

func (r *Router) finish(provider backend.Provider, requestedModel, backendModel string) (Decision, error) {
	if r.available != nil && !r.available[provider] {
		return Decision{}, errors.Errorf("provider not configured: %s", provider)
	}
	return Decision{Provider: provider, RequestedModel: requestedModel, BackendModel: backendModel}, nil
}
