// Package extract pulls comment texts out of a video page's HTML.
//
// Selectors are tried in order and the first one that yields at least one
// non-empty text wins; later selectors are ignored entirely. The selector
// language is a small CSS subset: tag, #id, .class, [attr], [attr=value]
// and the descendant combinator.
package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSelectors target the comment nodes of a standard video watch page,
// most specific first.
var DefaultSelectors = []string{
	"#content-text",
	"yt-formatted-string#content-text",
	".comment-text",
	"[id=content-text]",
}

type options struct {
	selectors []string
}

type Option func(*options)

// WithSelectors replaces the default selector list.
func WithSelectors(selectors ...string) Option {
	return func(o *options) {
		if len(selectors) > 0 {
			o.selectors = selectors
		}
	}
}

// Extract parses the document and returns the trimmed comment texts in
// document order. Strings that are empty after trimming are dropped.
// A page with no matches yields an empty slice, never an error.
//
// The winning selector is the first whose element set is non-empty, even
// when every matched element trims to nothing. Later selectors never run
// once elements have matched.
func Extract(r io.Reader, opts ...Option) []string {
	o := options{selectors: DefaultSelectors}
	for _, fn := range opts {
		fn(&o)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return []string{}
	}

	for _, raw := range o.selectors {
		sel, ok := parseSelector(raw)
		if !ok {
			continue
		}
		if texts, matched := collect(doc, sel); matched > 0 {
			return texts
		}
	}
	return []string{}
}

// ExtractString is Extract over an in-memory document.
func ExtractString(doc string, opts ...Option) []string {
	return Extract(strings.NewReader(doc), opts...)
}

func collect(doc *html.Node, sel selector) ([]string, int) {
	out := []string{}
	matched := 0
	var ancestors []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if sel.matches(n, ancestors) {
				matched++
				if text := strings.TrimSpace(textContent(n)); text != "" {
					out = append(out, text)
				}
			}
			ancestors = append(ancestors, n)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			ancestors = ancestors[:len(ancestors)-1]
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, matched
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
