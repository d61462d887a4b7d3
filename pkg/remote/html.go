package remote

import (
	"html"
	"regexp"
	"strings"
)

var (
	lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockEndTag  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|tr|ul|ol|pre|blockquote)\s*>`)
	listItemTag  = regexp.MustCompile(`(?i)<li(\s[^>]*)?>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	trailingWS   = regexp.MustCompile(`[ \t]+\n`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText converts the rich-text HTML stored by the service into plain
// text: block tags become line breaks, list items become "- " bullets,
// other tags are stripped and entities decoded.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = lineBreakTag.ReplaceAllString(s, "\n")
	s = blockEndTag.ReplaceAllString(s, "\n")
	s = listItemTag.ReplaceAllString(s, "\n- ")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = trailingWS.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// TextToHTML renders plain text so that HTMLToText returns it unchanged.
func TextToHTML(s string) string {
	s = html.EscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return strings.ReplaceAll(s, "\n", "<br>")
}
