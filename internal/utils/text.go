// Package utils holds small, dependency-free text helpers shared across
// the ingestion and retrieval core: safe UTF-8 truncation and
// sanitization for content that may have been extracted from binary
// sources with encoding errors.
package utils

import (
	"strings"
	"unicode/utf8"
)

// SafeUTF8Truncate truncates str to at most maxBytes bytes without
// splitting a multi-byte rune.
func SafeUTF8Truncate(str string, maxBytes int) string {
	if len(str) <= maxBytes {
		return str
	}

	for i := maxBytes; i >= 0 && i > maxBytes-4; i-- {
		if utf8.ValidString(str[:i]) {
			return str[:i]
		}
	}

	runes := []rune(str)
	result := ""
	for _, r := range runes {
		test := result + string(r)
		if len(test) > maxBytes {
			break
		}
		result = test
	}
	return result
}

// SanitizeUTF8 drops invalid byte sequences from str, returning a clean
// UTF-8 string safe to persist or return to a caller.
func SanitizeUTF8(str string) string {
	if utf8.ValidString(str) {
		return str
	}

	var buf strings.Builder
	buf.Grow(len(str))
	for len(str) > 0 {
		r, size := utf8.DecodeRuneInString(str)
		if r == utf8.RuneError && size == 1 {
			str = str[1:]
		} else {
			buf.WriteRune(r)
			str = str[size:]
		}
	}
	return buf.String()
}

// CleanAndFormatContent trims content, collapses runs of blank lines to
// at most one, truncates to maxLength bytes with a trailing ellipsis
// when it overflows, and guarantees the result is valid UTF-8. Used to
// normalize retrieved passage text before it leaves this core (§4.9
// Result.Text).
func CleanAndFormatContent(content string, maxLength int) string {
	content = strings.TrimSpace(content)

	lines := strings.Split(content, "\n")
	var cleaned []string
	lastWasEmpty := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !lastWasEmpty {
				cleaned = append(cleaned, "")
			}
			lastWasEmpty = true
			continue
		}
		cleaned = append(cleaned, trimmed)
		lastWasEmpty = false
	}

	result := strings.Join(cleaned, "\n")
	if len(result) > maxLength {
		result = SafeUTF8Truncate(result, maxLength) + "..."
	}
	return SanitizeUTF8(result)
}
