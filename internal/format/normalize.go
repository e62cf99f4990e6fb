package format

import (
	"regexp"
	"strings"
)

var (
	bracketedURLRe = regexp.MustCompile(`(?i)\[https?://[^\]]+\]`)
	bareURLRe      = regexp.MustCompile(`(?i)https?://\S+`)
	// C0 and C1 controls, minus the ones that separate words
	controlRe    = regexp.MustCompile(`[\x00-\x08\x0E-\x1F\x7F-\x84\x86-\x9F]`)
	whitespaceRe = regexp.MustCompile(`[\s\x0B\x85\p{Z}]+`)
)

// Normalize removes URLs and control characters, collapses whitespace runs to
// a single space and trims the result. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	for {
		next := normalizePass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func normalizePass(text string) string {
	text = bracketedURLRe.ReplaceAllString(text, "")
	text = bareURLRe.ReplaceAllString(text, "")
	text = controlRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
