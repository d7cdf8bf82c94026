// SPDX-License-Identifier: AGPL-3.0-only
package mastodon

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripHTMLToText flattens status HTML into single-spaced plain text.
// Inline markup (mention and hashtag links, their inner spans) is joined
// as written; paragraph, list and line breaks become spaces.
func stripHTMLToText(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return ""
	}

	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if isBlock(n.DataAtom) {
				b.WriteString(" ")
				defer b.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Div, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}
