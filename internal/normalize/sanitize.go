package normalize

import "regexp"

// xssPatterns is the single documented, testable set of content-security regexes (spec §9:
// "the exact regex set should be documented and testable, not hardcoded in multiple places").
// Applied only here, in sanitizeText, never duplicated elsewhere in the pipeline.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?i)on\w+\s*=\s*"[^"]*"`),
	regexp.MustCompile(`(?i)on\w+\s*=\s*'[^']*'`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)<embed[^>]*>`),
	regexp.MustCompile(`(?i)<object[^>]*>.*?</object>`),
}

// sanitizeText strips known XSS/HTML-injection patterns from text when enabled, substituting
// SanitizationPlaceholder if the result would otherwise be empty (spec §4.2).
func sanitizeText(text string, enabled bool) string {
	if text == "" {
		return SanitizationPlaceholder
	}
	if !enabled {
		return text
	}

	cleaned := text
	for _, p := range xssPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	if cleaned == "" {
		return SanitizationPlaceholder
	}
	return cleaned
}
