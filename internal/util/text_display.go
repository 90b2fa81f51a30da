package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet returns s cleaned of control characters and collapsed to
// single spaces, cut to maxRunes with a trailing "..." when longer.
func DisplaySnippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = SanitizeText(s)
	s = strings.Join(strings.Fields(s), " ")

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsPrint(r) {
			out = append(out, r)
		}
	}
	if len(out) > maxRunes {
		return strings.TrimSpace(string(out[:maxRunes])) + "..."
	}
	return string(out)
}
