// Package sanitize cleans and validates visitor input before it reaches the
// email relay, and masks personal data before it reaches the logs.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLength is the longest name kept, in runes.
	MaxNameLength = 50
	// MaxMessageLength is the longest message kept, in runes.
	MaxMessageLength = 1000
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	anglePattern     = regexp.MustCompile(`[<>]`)
	schemePattern    = regexp.MustCompile(`(?i)javascript:`)
	handlerPattern   = regexp.MustCompile(`(?i)on\w+=`)
	emailCharPattern = regexp.MustCompile(`[^\w@.-]`)
	nameCharPattern  = regexp.MustCompile(`[^a-zA-Z\s'-]`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Text removes markup, script URLs and inline event handlers, then trims.
func Text(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = anglePattern.ReplaceAllString(s, "")
	s = schemePattern.ReplaceAllString(s, "")
	s = handlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Email lowercases and keeps only characters valid in an address.
func Email(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = anglePattern.ReplaceAllString(s, "")
	s = schemePattern.ReplaceAllString(s, "")
	return emailCharPattern.ReplaceAllString(s, "")
}

// Name keeps letters, spaces, apostrophes and hyphens, collapses runs of
// whitespace and truncates to MaxNameLength.
func Name(s string) string {
	s = nameCharPattern.ReplaceAllString(Text(s), "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(truncate(s, MaxNameLength))
}

// Message collapses runs of whitespace and truncates to MaxMessageLength.
func Message(s string) string {
	s = spacePattern.ReplaceAllString(Text(s), " ")
	return truncate(s, MaxMessageLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
