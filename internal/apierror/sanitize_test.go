package apierror

import (
	"strings"
	"testing"
)

func TestSanitizeRedactsBearerToken(t *testing.T) {
	out := Sanitize("upstream rejected Bearer sk-abc123def456 as expired")
	if strings.Contains(out, "sk-abc123def456") {
		t.Fatalf("token leaked: %s", out)
	}
	if !strings.Contains(out, RedactionMarker) {
		t.Fatalf("expected redaction marker in %s", out)
	}
}

func TestSanitizeRedactsAPIKeyField(t *testing.T) {
	out := Sanitize("config error: api_key=abcdefghijklmnop123 is invalid")
	if strings.Contains(out, "abcdefghijklmnop123") {
		t.Fatalf("key leaked: %s", out)
	}
}

func TestSanitizeRedactsBackendURL(t *testing.T) {
	out := Sanitize("dial failed: https://internal.backend.example.com/v1/responses?key=x timed out")
	if strings.Contains(out, "internal.backend.example.com") {
		t.Fatalf("url leaked: %s", out)
	}
}

func TestSanitizeRedactsEmailAndDigitRun(t *testing.T) {
	out := Sanitize("contact ops@example.com re: account 123456789012")
	if strings.Contains(out, "ops@example.com") {
		t.Fatalf("email leaked: %s", out)
	}
	if strings.Contains(out, "123456789012") {
		t.Fatalf("digit run leaked: %s", out)
	}
}

func TestSanitizeLeavesOrdinaryMessageIntact(t *testing.T) {
	out := Sanitize("request body was missing required field model")
	if out != "request body was missing required field model" {
		t.Fatalf("unexpected mutation: %s", out)
	}
}
