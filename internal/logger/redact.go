package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Redactor scrubs credentials from log messages and fields.
type Redactor struct {
	keys     []string
	patterns []*regexp.Regexp
}

var (
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	// Refresh tokens are 64 hex characters.
	hexTokenPattern = regexp.MustCompile(`\b[a-f0-9]{64}\b`)
)

// DefaultRedactor returns a redactor for passwords, tokens and secrets.
func DefaultRedactor() *Redactor {
	return &Redactor{
		keys:     []string{"password", "token", "secret", "authorization", "hash"},
		patterns: []*regexp.Regexp{jwtPattern, bearerPattern, hexTokenPattern},
	}
}

// Redact replaces token-shaped substrings in s.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, redacted)
	}
	return s
}

// RedactFields returns a copy of fields with sensitive keys masked and
// string values scrubbed.
func (r *Redactor) RedactFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if r.sensitiveKey(k) {
			out[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
