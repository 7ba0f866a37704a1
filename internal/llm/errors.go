package llm

import (
	"regexp"
	"strings"
)

var rateLimitHintRe = regexp.MustCompile(`(?i)rate limit|too many requests|requests per (?:minute|hour|day)|quota|throttl|429\b|tpm\b|tpd\b`)

// IsLikelyRateLimitError reports whether an error from a model backend looks
// like throttling rather than a hard failure. The auto-reply monitor uses it
// to back off instead of hammering the API on every poll.
func IsLikelyRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	return IsLikelyRateLimitText(err.Error())
}

func IsLikelyRateLimitText(errorMessage string) bool {
	text := strings.TrimSpace(errorMessage)
	if text == "" {
		return false
	}
	return rateLimitHintRe.MatchString(text)
}
