// Package config loads the gateway's environment-driven configuration, matching the
// recognized keys in the specification's external-interfaces section.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/joho/godotenv"

	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/modelrouter"
)

// BackendCredentials holds the connection settings for one provider backend.
type BackendCredentials struct {
	BaseURL    string
	APIKey     string
	Model      string
	Region     string // Bedrock only
	Timeout    time.Duration
	MaxRetries int
}

// Config is the process-wide configuration snapshot, built once at startup.
type Config struct {
	Azure   BackendCredentials
	Bedrock BackendCredentials

	ModelRoutes []modelrouter.Entry

	ContentSecurityValidation bool

	ConversationMaxAge         time.Duration
	ConversationCleanupEvery   time.Duration
	MaxStoredConversations     int
	CircuitBreakerThreshold    int
	CircuitBreakerRecoveryTime time.Duration
}

// routeEntry is the MODEL_ROUTES JSON wire shape: {"provider":"azure","backendModel":"gpt-4o","aliases":["..."]}.
type routeEntry struct {
	Provider     string   `json:"provider"`
	BackendModel string   `json:"backendModel"`
	Aliases      []string `json:"aliases"`
}

// parseModelRoutes decodes the MODEL_ROUTES env var, a JSON array of routeEntry. An empty or
// absent value yields no entries, and the Model Router falls back to its default on every request.
func parseModelRoutes(raw string) ([]modelrouter.Entry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []routeEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, errors.Wrap(err, "parse MODEL_ROUTES")
	}
	out := make([]modelrouter.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, modelrouter.Entry{
			Provider:     backend.Provider(e.Provider),
			BackendModel: e.BackendModel,
			Aliases:      e.Aliases,
		})
	}
	return out, nil
}

// Load reads environment variables (optionally seeded from a .env file) into a Config.
// dotenvPath may be empty, in which case no file is loaded and only the real environment
// is consulted.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load dotenv file: %s", dotenvPath)
		}
	}

	routes, err := parseModelRoutes(os.Getenv("MODEL_ROUTES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ModelRoutes: routes,
		Azure: BackendCredentials{
			BaseURL:    firstNonEmpty(os.Getenv("AZURE_OPENAI_ENDPOINT"), os.Getenv("BASE_URL")),
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Model:      os.Getenv("AZURE_OPENAI_MODEL"),
			Timeout:    durationMS(os.Getenv("AZURE_OPENAI_TIMEOUT"), 120_000),
			MaxRetries: intOr(os.Getenv("AZURE_OPENAI_MAX_RETRIES"), 3),
		},
		Bedrock: BackendCredentials{
			BaseURL:    os.Getenv("AWS_BEDROCK_ENDPOINT"),
			APIKey:     os.Getenv("AWS_BEDROCK_API_KEY"),
			Model:      os.Getenv("AWS_BEDROCK_MODEL"),
			Region:     os.Getenv("AWS_BEDROCK_REGION"),
			Timeout:    durationMS(os.Getenv("AWS_BEDROCK_TIMEOUT"), 120_000),
			MaxRetries: intOr(os.Getenv("AWS_BEDROCK_MAX_RETRIES"), 3),
		},
		ContentSecurityValidation:  boolOr(os.Getenv("ENABLE_CONTENT_SECURITY_VALIDATION"), true),
		ConversationMaxAge:         durationMS(os.Getenv("CONVERSATION_MAX_AGE_MS"), 3_600_000),
		ConversationCleanupEvery:   durationMS(os.Getenv("CONVERSATION_CLEANUP_INTERVAL_MS"), 300_000),
		MaxStoredConversations:     intOr(os.Getenv("MAX_STORED_CONVERSATIONS"), 1000),
		CircuitBreakerThreshold:    intOr(os.Getenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD"), 5),
		CircuitBreakerRecoveryTime: durationMS(os.Getenv("RECOVERY_TIMEOUT_MS"), 60_000),
	}

	return cfg, nil
}

// Validate checks that a backend's credentials are usable, per spec §4.7 construction
// validation. provider is used only for the error message.
func (b BackendCredentials) Validate(provider string) error {
	if !strings.HasPrefix(strings.ToLower(b.BaseURL), "https://") {
		return errors.Errorf("%s: base url must be https", provider)
	}
	if b.APIKey == "" {
		return errors.Errorf("%s: api key must not be empty", provider)
	}
	if b.Model == "" {
		return errors.Errorf("%s: model/deployment must not be empty", provider)
	}
	if b.Timeout <= 0 {
		return errors.Errorf("%s: timeout must be positive", provider)
	}
	if b.MaxRetries < 0 {
		return errors.Errorf("%s: max retries must be non-negative", provider)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func durationMS(s string, defMS int) time.Duration {
	return time.Duration(intOr(s, defMS)) * time.Millisecond
}

func boolOr(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
