// Package netutil validates backend base URLs at client construction time.
package netutil

import (
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"
)

// ValidateBackendBaseURL parses rawURL and verifies it is an https URL with a concrete host,
// per the Backend Client construction invariant in spec §4.7 ("HTTPS base URL").
func ValidateBackendBaseURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("base url is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	if strings.ToLower(parsed.Scheme) != "https" {
		return nil, errors.Errorf("unsupported base url scheme: %s", parsed.Scheme)
	}

	if parsed.User != nil {
		return nil, errors.New("base url must not include user info")
	}

	if parsed.Hostname() == "" {
		return nil, errors.New("base url host is empty")
	}

	return parsed, nil
}
