package parser

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Tags whose entire content carries no prose.
	scriptStyleRegex = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	// Block-level closings become paragraph breaks so sentences stay apart.
	blockBreakRegex = regexp.MustCompile(`(?i)</(p|div|tr|table|h[1-6]|li|blockquote)>|<br\s*/?>`)
	tagRegex        = regexp.MustCompile(`<[^>]+>`)
	multiSpaceRegex = regexp.MustCompile(`[ \t]+`)
	multiLineRegex  = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes raw newsletter content into plain text. HTML markup
// is stripped, entities decoded, and whitespace collapsed; plain-text
// input passes through with only whitespace normalization.
func CleanText(content string) string {
	text := scriptStyleRegex.ReplaceAllString(content, " ")
	text = blockBreakRegex.ReplaceAllString(text, "\n\n")
	text = tagRegex.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)

	text = multiSpaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiLineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
