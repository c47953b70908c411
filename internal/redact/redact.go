// Package redact masks sensitive values in checkpoint details before they
// reach the audit trail.
package redact

import (
	"regexp"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "***"

// DefaultKeys are the detail keys always redacted.
var DefaultKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "credential", "credentials", "private_key",
	"email", "phone", "ssn", "passport", "credit_card", "card_number", "cvv",
}

var (
	// Credentials embedded in free text: key=value or key: value.
	credKVRe = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api_key|apikey|auth)([ \t]*[=:][ \t]*)\S+`)

	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
)

// MaskValue replaces a value with Mask. Numbers and bools are preserved.
func MaskValue(v any) any {
	switch v.(type) {
	case int, int32, int64, float32, float64, bool:
		return v
	case nil:
		return nil
	default:
		return Mask
	}
}

// String masks credentials and email addresses inside free text.
func String(s string) string {
	s = credKVRe.ReplaceAllString(s, "${1}${2}"+Mask)
	return emailRe.ReplaceAllString(s, Mask)
}

// Details returns a copy of details with DefaultKeys and extraKeys masked
// and string values scrubbed. Nested maps and slices are walked. The input
// is never modified. Nil in, nil out.
func Details(details map[string]any, extraKeys []string) map[string]any {
	if details == nil {
		return nil
	}
	keys := make(map[string]bool, len(DefaultKeys)+len(extraKeys))
	for _, k := range DefaultKeys {
		keys[k] = true
	}
	for _, k := range extraKeys {
		keys[strings.ToLower(k)] = true
	}
	return redactMap(details, keys)
}

func redactMap(data map[string]any, keys map[string]bool) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if keys[strings.ToLower(k)] {
			out[k] = MaskValue(v)
			continue
		}
		out[k] = redactValue(v, keys)
	}
	return out
}

func redactValue(v any, keys map[string]bool) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case map[string]any:
		return redactMap(val, keys)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item, keys)
		}
		return out
	default:
		return v
	}
}
