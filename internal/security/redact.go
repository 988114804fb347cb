package security

import "regexp"

// RedactedPlaceholder replaces every matched secret.
const RedactedPlaceholder = "[REDACTED]"

// Ordered pattern list: vendor-specific token shapes first, then generic
// key=value / key: value forms with long trailing tokens. Patterns are
// heuristic. This is best-effort log hygiene, not a security boundary;
// callers (audit log, replay delivery) must not rely on it for
// confidentiality.
var redactPatterns = []*regexp.Regexp{
	// AWS access key ids
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	// GitHub tokens (classic and fine-grained)
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,255}\b`),
	regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,255}\b`),
	// Slack tokens
	regexp.MustCompile(`\bxox[abposr]-[A-Za-z0-9-]{10,250}\b`),
	// OpenAI / Anthropic style keys
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,250}\b`),
	// JWTs
	regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`),
	// Bearer headers
	regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9+/_=.-]{16,}`),
	// Generic key=value / key: value with a long trailing token
	regexp.MustCompile(`(?i)\b([A-Za-z0-9_-]*(?:token|secret|key|password|passwd|credential|auth)[A-Za-z0-9_-]*)(\s*[:=]\s*)\S{8,}`),
}

var genericKV = redactPatterns[len(redactPatterns)-1]

// Redact replaces anything that looks like a credential with a fixed
// placeholder. It is a pure function and idempotent: the placeholder never
// matches any pattern, so redacting twice is a no-op.
func Redact(text string) string {
	for _, re := range redactPatterns {
		if re == genericKV {
			text = re.ReplaceAllString(text, "${1}${2}"+RedactedPlaceholder)
			continue
		}
		text = re.ReplaceAllString(text, RedactedPlaceholder)
	}
	return text
}
