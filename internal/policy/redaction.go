// Package policy screens chat prompts and scrubs transcripts before they are
// stored.
package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)

	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`),
		regexp.MustCompile(`\bsk-[0-9A-Za-z_\-]{20,}\b`),
		regexp.MustCompile(`(?i)\bbearer\s+[0-9A-Za-z._\-]{16,}`),
	}
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Cards before phones, or long card numbers read as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactSecrets masks provider API keys and bearer tokens.
func RedactSecrets(input string) (redacted string, changed bool) {
	out := input
	for _, re := range apiKeyPatterns {
		next := re.ReplaceAllString(out, "[REDACTED_KEY]")
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Redact applies RedactSecrets then RedactPII.
func Redact(input string) (string, bool) {
	out, secret := RedactSecrets(input)
	out, pii := RedactPII(out)
	return out, secret || pii
}
