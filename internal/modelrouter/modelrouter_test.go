package modelrouter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/backend"
)

func testConfig() Config {
	return Config{
		Entries: []Entry{
			{Provider: backend.ProviderAzure, BackendModel: "gpt-4o", Aliases: []string{"claude-3-5-sonnet-20241022"}},
			{Provider: backend.ProviderBedrock, BackendModel: "anthropic.claude-3-5-sonnet", Aliases: []string{"claude-3-opus"}},
		},
		DefaultProvider: backend.ProviderAzure,
		DefaultModel:    "gpt-4o-mini",
	}
}

func TestRouteByAlias(t *testing.T) {
	r := New(testConfig(), nil)
	d, err := r.Route("claude-3-5-sonnet-20241022")
	require.NoError(t, err)
	require.Equal(t, backend.ProviderAzure, d.Provider)
	require.Equal(t, "gpt-4o", d.BackendModel)
	require.Equal(t, "claude-3-5-sonnet-20241022", d.RequestedModel)
}

func TestRouteByExactBackendModel(t *testing.T) {
	r := New(testConfig(), nil)
	d, err := r.Route("anthropic.claude-3-5-sonnet")
	require.NoError(t, err)
	require.Equal(t, backend.ProviderBedrock, d.Provider)
}

func TestRouteFallsBackToDefault(t *testing.T) {
	r := New(testConfig(), nil)
	d, err := r.Route("unknown-model")
	require.NoError(t, err)
	require.Equal(t, backend.ProviderAzure, d.Provider)
	require.Equal(t, "gpt-4o-mini", d.BackendModel)
	require.Equal(t, "unknown-model", d.RequestedModel)
}

func TestRouteFailsWhenProviderUnavailable(t *testing.T) {
	available := map[backend.Provider]bool{backend.ProviderAzure: true, backend.ProviderBedrock: false}
	r := New(testConfig(), available)
	_, err := r.Route("claude-3-opus")
	require.Error(t, err)
}

func TestRouteCaseSensitiveMatch(t *testing.T) {
	r := New(testConfig(), nil)
	d, err := r.Route("CLAUDE-3-5-SONNET-20241022")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", d.BackendModel) // no case-insensitive match, falls to default
}
