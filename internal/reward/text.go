package reward

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// markupPattern matches HTML tags produced by the rich-text editor,
// including a trailing unterminated tag.
var markupPattern = regexp.MustCompile(`<[^>]*>?`)

// StripMarkup removes markup and surrounding whitespace.
func StripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

// TextLength counts the characters of s after NFC normalization, so a
// decomposed "é" counts once.
func TextLength(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// PlainTextLength is the length of a rich-text body with markup stripped.
func PlainTextLength(body string) int {
	return TextLength(StripMarkup(body))
}
