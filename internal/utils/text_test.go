package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeUTF8Truncate(t *testing.T) {
	assert.Equal(t, "hello", SafeUTF8Truncate("hello", 10))
	truncated := SafeUTF8Truncate("你好世界", 6)
	assert.True(t, len(truncated) <= 6)
	assert.True(t, strings.ToValidUTF8(truncated, "") == truncated)
}

func TestSanitizeUTF8_RemovesInvalidBytes(t *testing.T) {
	invalid := "hello\xffworld"
	clean := SanitizeUTF8(invalid)
	assert.Equal(t, "helloworld", clean)
}

func TestCleanAndFormatContent(t *testing.T) {
	input := "  line one  \n\n\n\nline two  \n\n"
	got := CleanAndFormatContent(input, 1000)
	assert.Equal(t, "line one\n\nline two", got)
}

func TestCleanAndFormatContent_TruncatesWithEllipsis(t *testing.T) {
	input := strings.Repeat("a", 100)
	got := CleanAndFormatContent(input, 10)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 13)
}
