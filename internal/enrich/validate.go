package enrich

import (
	"regexp"
	"strings"
)

const minSummaryLength = 50

// singleCharRatio above which a response is considered garbled output.
const singleCharRatio = 0.3

var greetingPrefixes = []string{"HELLO", "HI", "HOW CAN I", "I'M HERE"}

// Validate checks an AI summary before acceptance. It returns an empty
// string for a valid summary, or a short rejection reason.
func Validate(summary string) string {
	summary = strings.TrimSpace(summary)

	if len(summary) < minSummaryLength {
		return "too short"
	}

	upper := strings.ToUpper(summary)
	for _, prefix := range greetingPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return "generic greeting"
		}
	}

	words := strings.Fields(summary)
	single := 0
	for _, w := range words {
		if len(w) == 1 {
			single++
		}
	}
	if len(words) > 0 && float64(single) > float64(len(words))*singleCharRatio {
		return "too many single characters"
	}

	return ""
}

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	camelCaseRe    = regexp.MustCompile(`([a-z])([A-Z])`)
	isolatedCharRe = regexp.MustCompile(`\s+[a-zA-Z]\s+`)
)

// CleanText normalizes extracted text before it is sent to the model or
// used as fallback content: collapses whitespace, splits run-together
// camelCase from PDF extraction, and drops stray isolated characters.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = camelCaseRe.ReplaceAllString(text, "$1 $2")
	text = isolatedCharRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
