// Package redact provides helpers for stripping sensitive values from log
// output and structured data before it leaves the process boundary.
//
// # Threat model
//
// Secrets (bearer tokens, AWS access keys, project API tokens) must never
// appear in log lines emitted by the agent, since those lines may be shipped
// to an external error-reporting sink.
//
// Redaction is best-effort: Line operates on known shapes (token=, Bearer
// <x>, AKIA… prefixes); String operates on literal known values. Neither is
// a substitute for keeping secrets out of log call-sites in the first place.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// patterns match secret-shaped substrings that may appear in free-form log
// lines even when the caller does not know the literal secret value ahead of
// time (e.g. a token embedded in an error message returned by a dependency).
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(token|password|api_key|apikey|authorization)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)Bearer\s+\S+`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// Line applies the fixed set of secret-shaped patterns to s, replacing each
// match with [REDACTED]. Unlike String, it requires no knowledge of the
// literal secret value — it recognises the surrounding shape instead.
func Line(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, placeholder)
	}
	return s
}

// String replaces every occurrence of each sensitive value in s with
// [REDACTED].  Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
// Example:
//
//	safe := redact.String(logLine, apiKey, matrixToken)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Map returns a shallow copy of m with values replaced by [REDACTED] for
// every key whose name suggests it contains a secret (password, token, key,
// secret, credential, auth).  Non-string values are left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

// isSensitiveKey returns true when the key name suggests it holds a secret.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth", "apikey"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
