package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// simple is one compound selector step: tag#id.class[attr=value].
type simple struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key    string
	val    string
	hasVal bool
}

// selector is a descendant chain of simple steps ("a b" matches b inside a).
type selector []simple

// parseSelector parses the supported selector subset. The second return is
// false for selectors the subset cannot express.
func parseSelector(raw string) (selector, bool) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return nil, false
	}

	sel := make(selector, 0, len(parts))
	for _, part := range parts {
		s, ok := parseSimple(part)
		if !ok {
			return nil, false
		}
		sel = append(sel, s)
	}
	return sel, true
}

func parseSimple(part string) (simple, bool) {
	var s simple
	i := 0

	start := i
	for i < len(part) && part[i] != '#' && part[i] != '.' && part[i] != '[' {
		i++
	}
	s.tag = strings.ToLower(part[start:i])

	for i < len(part) {
		switch part[i] {
		case '#':
			i++
			start = i
			for i < len(part) && part[i] != '#' && part[i] != '.' && part[i] != '[' {
				i++
			}
			if start == i {
				return simple{}, false
			}
			s.id = part[start:i]
		case '.':
			i++
			start = i
			for i < len(part) && part[i] != '#' && part[i] != '.' && part[i] != '[' {
				i++
			}
			if start == i {
				return simple{}, false
			}
			s.classes = append(s.classes, part[start:i])
		case '[':
			end := strings.IndexByte(part[i:], ']')
			if end < 0 {
				return simple{}, false
			}
			body := part[i+1 : i+end]
			i += end + 1
			if body == "" {
				return simple{}, false
			}
			key, val, hasVal := strings.Cut(body, "=")
			key = strings.ToLower(strings.TrimSpace(key))
			if key == "" {
				return simple{}, false
			}
			val = strings.Trim(strings.TrimSpace(val), `"'`)
			s.attrs = append(s.attrs, attrMatch{key: key, val: val, hasVal: hasVal})
		default:
			return simple{}, false
		}
	}

	if s.tag == "" && s.id == "" && len(s.classes) == 0 && len(s.attrs) == 0 {
		return simple{}, false
	}
	return s, true
}

// matches reports whether n satisfies the full chain given its element
// ancestors (outermost first).
func (sel selector) matches(n *html.Node, ancestors []*html.Node) bool {
	if len(sel) == 0 {
		return false
	}
	if !sel[len(sel)-1].matchesNode(n) {
		return false
	}

	i := len(sel) - 2
	for j := len(ancestors) - 1; j >= 0 && i >= 0; j-- {
		if sel[i].matchesNode(ancestors[j]) {
			i--
		}
	}
	return i < 0
}

func (s simple) matchesNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attrValue(n, "id") != s.id {
		return false
	}
	for _, class := range s.classes {
		if !hasClass(n, class) {
			return false
		}
	}
	for _, am := range s.attrs {
		val, ok := lookupAttr(n, am.key)
		if !ok {
			return false
		}
		if am.hasVal && val != am.val {
			return false
		}
	}
	return true
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
