package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs.
	MaxPathLength = 500
	// MaxErrorMessageLength is the maximum length for error messages in logs.
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs.
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength is the maximum length for debug content (prompts
	// and model responses). Debug logs carry sanitized conversation excerpts
	// only, never raw lead input.
	MaxDebugContentLength = 10000
)

// SanitizePath sanitizes a URL path for safe logging: strips control
// characters, validates UTF-8 and truncates.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString sanitizes a general string for safe logging.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// SanitizeError sanitizes an error message for safe logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeDebugContent sanitizes prompt/response excerpts for debug logs.
// Even in debug mode content is filtered to prevent log injection.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}

// SanitizeAPIKey masks an API key, keeping only the first and last four
// characters.
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "[REDACTED]"
	}
	return apiKey[:4] + "[REDACTED]" + apiKey[len(apiKey)-4:]
}

// filterRunes validates UTF-8 and removes control characters, keeping
// printable runes, space, tab, newline and CR.
func filterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
