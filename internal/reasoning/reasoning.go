// Package reasoning implements the Reasoning-Effort Analyzer (spec §4.3): a pure function
// from request/conversation signals to one of minimal|low|medium|high. No side effects;
// decisions are stable under re-evaluation with the same inputs.
package reasoning

import (
	"regexp"
	"strings"

	"github.com/Laisky/llm-gateway/internal/convstore"
)

// Effort is one of the four reasoning-effort levels, ordered minimal < low < medium < high.
type Effort int

const (
	Minimal Effort = iota
	Low
	Medium
	High
)

// String renders the effort the way it is sent on the wire.
func (e Effort) String() string {
	switch e {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "minimal"
	}
}

// ParseEffort parses a caller-provided hint; unrecognized values default to Medium, matching
// the Normalizer's documented default (spec §4.2).
func ParseEffort(s string) Effort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal
	case "low":
		return Low
	case "high":
		return High
	default:
		return Medium
	}
}

// Max returns the higher of two efforts, implementing the "never lowers a caller-provided
// hint" floor from spec §4.2/§9.
func Max(a, b Effort) Effort {
	if a > b {
		return a
	}
	return b
}

// Signals is everything the Analyzer needs, gathered by the HTTP handler
// (gatewayhttp's buildSignals) before calling Analyze.
type Signals struct {
	MessageCount     int
	HasTools         bool
	ContentLength    int
	HasCodeBlock     bool
	HasComplexityKeyword bool
	QuestionMarks    int
	Metrics          convstore.Metrics
}

var complexityKeywords = regexp.MustCompile(`(?i)\b(architecture|algorithm|concurren\w*|distributed|optimi[sz]e|refactor|race condition|deadlock|security|vulnerab\w*)\b`)
var codeBlockPattern = regexp.MustCompile("```")

// DetectCodeBlockAndKeyword inspects raw text content and reports whether it contains a
// fenced code block and/or a complexity keyword, for callers building a Signals value.
func DetectCodeBlockAndKeyword(content string) (hasCodeBlock, hasKeyword bool) {
	return codeBlockPattern.MatchString(content), complexityKeywords.MatchString(content)
}

// Analyze computes the weighted score from spec §4.3 and maps it to an Effort.
func Analyze(s Signals) Effort {
	score := 0

	switch {
	case s.MessageCount > 10:
		score += 3
	case s.MessageCount > 5:
		score += 2
	case s.MessageCount > 2:
		score += 1
	}

	if s.Metrics.MessageCount > 0 {
		avgTokens := float64(s.Metrics.TotalTokens) / float64(s.Metrics.MessageCount)
		switch {
		case avgTokens > 2000:
			score += 2
		case avgTokens > 1000:
			score += 1
		}

		errRate := float64(s.Metrics.ErrorCount) / float64(s.Metrics.MessageCount)
		switch {
		case errRate > 0.20:
			score += 2
		case errRate > 0.10:
			score += 1
		}

		if s.Metrics.AvgResponseTimeMs > 10_000 {
			score += 1
		}

		totalTokens := s.Metrics.TotalTokens
		if totalTokens > 0 {
			reasoningRatio := float64(s.Metrics.ReasoningTokens) / float64(totalTokens)
			switch {
			case reasoningRatio > 0.30:
				score += 2
			case reasoningRatio > 0.10:
				score += 1
			}
		}
	}

	switch {
	case s.ContentLength > 10_000:
		score += 2
	case s.HasCodeBlock && s.HasComplexityKeyword:
		score += 2
	case s.QuestionMarks > 2:
		score += 2
	case s.ContentLength > 500:
		score += 1
	}

	effort := scoreToEffort(score)
	if s.HasTools && effort < Medium {
		effort = Medium
	}
	return effort
}

func scoreToEffort(score int) Effort {
	switch {
	case score >= 8:
		return High
	case score >= 4:
		return Medium
	case score >= 2:
		return Low
	default:
		return Minimal
	}
}
