package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// CleanText returns s normalized to NFKC with every whitespace run
// collapsed to a single space and the ends trimmed. Line structure is lost.
func CleanText(s string) string {
	return CollapseWhitespace(norm.NFKC.String(s))
}

// CollapseWhitespace replaces every whitespace run in s with a single space
// and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nodeText concatenates the text below n. A <br> element counts as a space,
// so "line<br>break" does not become "linebreak".
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "br" {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return CollapseWhitespace(b.String())
}
