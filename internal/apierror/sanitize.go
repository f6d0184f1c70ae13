package apierror

import "regexp"

// RedactionMarker replaces any sanitized secret-shaped substring in an error message before
// it is exposed to a caller, per spec §4.11 and testable property 9.
const RedactionMarker = "[REDACTED]"

var (
	bearerPattern     = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	apiKeyPattern     = regexp.MustCompile(`(?i)(api[_-]?key|x-api-key)\s*[:=]\s*[a-z0-9._\-]+`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	longTokenPattern  = regexp.MustCompile(`[a-zA-Z0-9]{20,}`)
	digitRunPattern   = regexp.MustCompile(`\b\d{9,}\b`)
	backendURLPattern = regexp.MustCompile(`https?://[^\s"']+`)
)

// Sanitize redacts bearer tokens, api-key patterns, backend URLs, email addresses, long opaque
// tokens, and digit runs that look like credit-card/SSN numbers, per spec §4.11.
func Sanitize(msg string) string {
	msg = bearerPattern.ReplaceAllString(msg, RedactionMarker)
	msg = apiKeyPattern.ReplaceAllString(msg, RedactionMarker)
	msg = backendURLPattern.ReplaceAllString(msg, RedactionMarker)
	msg = emailPattern.ReplaceAllString(msg, RedactionMarker)
	msg = digitRunPattern.ReplaceAllString(msg, RedactionMarker)
	msg = longTokenPattern.ReplaceAllString(msg, RedactionMarker)
	return msg
}
