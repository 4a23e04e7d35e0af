package utils

import (
	"regexp"
	"strings"
)

// multipleSpaces matches any sequence of whitespace, newlines included.
var multipleSpaces = regexp.MustCompile(`\s+`)

// CompressAllWhitespace replaces every whitespace run with a single space
// and trims the ends. Message text is compressed this way before pattern
// matching so padding cannot split a word pattern across a run of spaces.
func CompressAllWhitespace(s string) string {
	return strings.TrimSpace(multipleSpaces.ReplaceAllString(s, " "))
}
