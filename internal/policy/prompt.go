package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxPromptRunes bounds a single chat prompt.
const DefaultMaxPromptRunes = 4000

type PromptDecision struct {
	Allowed bool
	// Reason is a stable code: "empty", "too_long" or "disallowed".
	Reason string
}

var disallowedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(print|show|reveal|tell|give)\b.*\b(api[_ -]?key|token|password|secret|system (prompt|instruction))\b`),
	regexp.MustCompile(`(?i)\bignore (all |your )?(previous|prior) instructions\b`),
}

// CheckPrompt decides whether prompt may be forwarded to the model.
// maxRunes <= 0 means DefaultMaxPromptRunes.
func CheckPrompt(prompt string, maxRunes int) PromptDecision {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxPromptRunes
	}
	in := strings.TrimSpace(prompt)
	if in == "" {
		return PromptDecision{Reason: "empty"}
	}
	if utf8.RuneCountInString(in) > maxRunes {
		return PromptDecision{Reason: "too_long"}
	}
	for _, re := range disallowedPatterns {
		if re.MatchString(in) {
			return PromptDecision{Reason: "disallowed"}
		}
	}
	return PromptDecision{Allowed: true}
}
