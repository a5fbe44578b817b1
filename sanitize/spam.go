package sanitize

import "regexp"

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:bit\.ly|tinyurl|t\.co|goo\.gl|short\.link)`),
	regexp.MustCompile(`(?i)(?:buy|sell|cheap|discount|free|click here|urgent|limited time)`),
	regexp.MustCompile(`(?i)(?:viagra|cialis|casino|poker|lottery|winner)`),
	regexp.MustCompile(`(?:[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}){2,}`),
	regexp.MustCompile(`(?i)(?:http|https|www\.){3,}`),
}

// ContainsSpam reports whether text matches a known spam pattern: link
// shorteners, sales vocabulary, pharmacy or gambling terms, or runs of
// addresses or URL markers.
func ContainsSpam(text string) bool {
	for _, p := range spamPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
