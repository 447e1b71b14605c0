// Package sanitize scrubs sensitive values out of log context data before it
// is persisted. Keys (not values) are matched case-insensitively against a
// configurable set of regular expressions; matching values are replaced by a
// fixed redaction marker, recursing into nested maps.
package sanitize

import (
	"regexp"

	"github.com/simorgh/advanced-logger/models"
)

// DefaultMask is the redaction marker used when none is configured.
const DefaultMask = "[REDACTED]"

// DefaultPatterns is the fallback pattern set, applied when the configured
// patterns are absent or malformed.
var DefaultPatterns = []string{
	"password", "token", "secret", "key", "credit_card", "ssn", "social_security",
}

// Sanitizer redacts values whose keys match any of its compiled patterns.
type Sanitizer struct {
	patterns []*regexp.Regexp
	mask     string
	enabled  bool
}

// New compiles the given patterns case-insensitively. A malformed pattern set
// must not break the logging path: if any pattern fails to compile, the whole
// set is discarded in favor of DefaultPatterns.
func New(patterns []string, mask string, enabled bool) *Sanitizer {
	if mask == "" {
		mask = DefaultMask
	}
	compiled, err := compile(patterns)
	if err != nil || len(compiled) == 0 {
		compiled, _ = compile(DefaultPatterns)
	}
	return &Sanitizer{patterns: compiled, mask: mask, enabled: enabled}
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Mask returns the redaction marker in use.
func (s *Sanitizer) Mask() string { return s.mask }

// Apply returns a sanitized copy of ctx. The input is never mutated. The
// operation is idempotent: sanitizing an already-sanitized map is a no-op.
func (s *Sanitizer) Apply(ctx models.Context) models.Context {
	if ctx == nil {
		return nil
	}
	if !s.enabled {
		return cloneMap(ctx)
	}
	return s.scrub(ctx)
}

func (s *Sanitizer) scrub(m models.Context) models.Context {
	out := make(models.Context, len(m))
	for key, value := range m {
		if nested, ok := asMap(value); ok {
			out[key] = s.scrub(nested)
			continue
		}
		if s.matches(key) {
			out[key] = s.mask
			continue
		}
		out[key] = value
	}
	return out
}

func (s *Sanitizer) matches(key string) bool {
	for _, re := range s.patterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

func asMap(v any) (models.Context, bool) {
	switch m := v.(type) {
	case models.Context:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func cloneMap(m models.Context) models.Context {
	out := make(models.Context, len(m))
	for k, v := range m {
		if nested, ok := asMap(v); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
