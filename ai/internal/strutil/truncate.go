// Package strutil provides string helpers shared by the ai packages.
package strutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to maxLen runes and appends "..." when it cut anything.
// Returns empty string if maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// RuneStart moves i back to the start of the UTF-8 sequence containing s[i].
// i == len(s) is returned unchanged.
func RuneStart(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
