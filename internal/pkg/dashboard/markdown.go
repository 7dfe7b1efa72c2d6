package dashboard

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown renders the document as markdown.
func (d Document) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(d.Title)
	sb.WriteString("\n")

	for _, sec := range d.Sections {
		sb.WriteString("\n## ")
		sb.WriteString(sec.Title)
		sb.WriteString("\n\n")

		if sec.Kind == SectionWordCloud {
			for _, line := range sec.Lines {
				sb.WriteString("![word cloud](")
				sb.WriteString(wordCloudSrc(line))
				sb.WriteString(")\n")
			}
			continue
		}

		for _, row := range sec.Rows {
			sb.WriteString("- **")
			sb.WriteString(row.Label)
			sb.WriteString("**: ")
			sb.WriteString(row.Value)
			sb.WriteString("\n")
		}
		for _, line := range sec.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// HTML converts the markdown rendering to HTML.
func (d Document) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// wordCloudSrc accepts either a URL or raw base64 image data.
func wordCloudSrc(v string) string {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "data:") {
		return v
	}
	return "data:image/png;base64," + v
}
