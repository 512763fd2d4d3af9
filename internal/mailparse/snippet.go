package mailparse

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const snippetLength = 200

var (
	scriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
)

// Snippet creates a short preview from the text body, falling back to stripped HTML.
func Snippet(text, htmlBody string) string {
	s := text
	if strings.TrimSpace(s) == "" && htmlBody != "" {
		s = scriptStyle.ReplaceAllString(htmlBody, " ")
		s = htmlTag.ReplaceAllString(s, " ")
		s = html.UnescapeString(s)
	}

	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	r := []rune(s)
	return string(r[:snippetLength-3]) + "..."
}
