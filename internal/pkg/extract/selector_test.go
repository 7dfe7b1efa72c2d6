package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSelector(t *testing.T) {
	cases := []struct {
		raw   string
		ok    bool
		steps int
	}{
		{"div", true, 1},
		{"#content-text", true, 1},
		{".comment-text", true, 1},
		{"[id=content-text]", true, 1},
		{"[hidden]", true, 1},
		{"yt-formatted-string#content-text", true, 1},
		{"div.a.b#x", true, 1},
		{"div.thread span.text", true, 2},
		{"", false, 0},
		{"   ", false, 0},
		{"#", false, 0},
		{".", false, 0},
		{"[", false, 0},
		{"[=v]", false, 0},
		{"div[unclosed", false, 0},
	}

	for _, tc := range cases {
		sel, ok := parseSelector(tc.raw)
		assert.Equal(t, tc.ok, ok, "selector %q", tc.raw)
		if tc.ok {
			assert.Len(t, sel, tc.steps, "selector %q", tc.raw)
		}
	}
}

func TestParseSimpleParts(t *testing.T) {
	sel, ok := parseSelector(`div.note#main[data-x="1"]`)
	assert.True(t, ok)
	assert.Len(t, sel, 1)

	s := sel[0]
	assert.Equal(t, "div", s.tag)
	assert.Equal(t, "main", s.id)
	assert.Equal(t, []string{"note"}, s.classes)
	assert.Len(t, s.attrs, 1)
	assert.Equal(t, "data-x", s.attrs[0].key)
	assert.Equal(t, "1", s.attrs[0].val)
	assert.True(t, s.attrs[0].hasVal)
}

func TestTagNamesLowercased(t *testing.T) {
	got := ExtractString(`<html><body><DIV class="c">x</DIV></body></html>`, WithSelectors("DIV.c"))
	assert.Equal(t, []string{"x"}, got)
}
