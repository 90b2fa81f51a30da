package util

import (
	"regexp"
	"strings"
)

var (
	lineWrapHyphenRe = regexp.MustCompile(`-\s*\n\s*`)
	whitespaceRunRe  = regexp.MustCompile(`\s+`)
)

// SanitizeText removes NUL bytes and other non-printing controls that some PDF
// extractors emit, keeping newlines and tabs.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}

// CleanExtractedText joins words hyphenated across line breaks and collapses
// every whitespace run into a single space.
func CleanExtractedText(s string) string {
	s = SanitizeText(s)
	s = lineWrapHyphenRe.ReplaceAllString(s, "")
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
