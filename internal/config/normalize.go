package config

import (
	"regexp"
	"strings"
)

const DefaultScope = "default"

var (
	validScopeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	invalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	leadingDash  = regexp.MustCompile(`^-+`)
	trailingDash = regexp.MustCompile(`-+$`)
)

// NormalizeScope converts a user-provided scope name (tab label, session
// name) into a valid scope ID:
//   - Lowercase, max 64 chars
//   - Only [a-z0-9_-] allowed
//   - Invalid chars replaced with "-"
//   - Leading/trailing dashes stripped
//   - Empty result defaults to "default"
func NormalizeScope(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultScope
	}

	lower := strings.ToLower(trimmed)
	if validScopeRe.MatchString(lower) {
		return lower
	}

	result := invalidChars.ReplaceAllString(lower, "-")
	result = leadingDash.ReplaceAllString(result, "")
	result = trailingDash.ReplaceAllString(result, "")

	if len(result) > 64 {
		result = result[:64]
	}

	if result == "" {
		return DefaultScope
	}
	return result
}
