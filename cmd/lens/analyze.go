package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/dashboard"
	"github.com/tubelens/core/internal/pkg/envelope"
	"github.com/tubelens/core/internal/pkg/extract"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url|file>",
	Short: "Extract comments from a watch page and run analysis",
	Long:  "Fetches the page (or reads a saved HTML file, '-' for stdin), pulls out the comment texts, sends them to the server and renders the analysis.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("content-id", "", "content id for the result cache (derived from the URL when omitted)")
	analyzeCmd.Flags().String("title", "", "video title shown on the dashboard (taken from <title> when omitted)")
	analyzeCmd.Flags().StringArray("selector", nil, "CSS selector for comment nodes (repeatable, replaces the default list)")
	analyzeCmd.Flags().StringP("format", "f", "term", "output format: term, json, markdown or html")
	analyzeCmd.Flags().StringP("out", "o", "", "write the rendered output to a file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := args[0]
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	switch format {
	case "term", "json", "markdown", "md", "html":
	default:
		return fmt.Errorf("unsupported --format %q: use term, json, markdown or html", format)
	}
	if outPath != "" && format == "term" {
		return fmt.Errorf("--out needs a file format: json, markdown or html")
	}

	doc, err := loadDocument(cmd, source)
	if err != nil {
		return err
	}

	selectors, _ := cmd.Flags().GetStringArray("selector")
	var opts []extract.Option
	if len(selectors) > 0 {
		opts = append(opts, extract.WithSelectors(selectors...))
	}
	comments := extract.ExtractString(string(doc), opts...)

	contentID, _ := cmd.Flags().GetString("content-id")
	if contentID == "" {
		contentID = deriveContentID(source)
	}
	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		if heads := extract.ExtractString(string(doc), extract.WithSelectors("title")); len(heads) > 0 {
			title = heads[0]
		}
	}

	if format == "term" {
		pterm.Info.Printfln("extracted %d comments from %s", len(comments), source)
	}

	payload := map[string]any{
		"contentId": contentID,
		"title":     title,
		"comments":  comments,
	}
	raw, err := postBridge(cmd.Context(), cmd, envelope.MessageAnalyzeComments, payload)
	if err != nil {
		return err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("unexpected analysis payload: %w", err)
	}

	return writeResult(&result, format, outPath)
}

// loadDocument reads the page markup from a URL, a file, or stdin.
func loadDocument(cmd *cobra.Command, source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(os.Stdin)
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "tubelens-lens/1.0")
		resp, err := httpClient(cmd).Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("fetch %s: %s", source, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}

// deriveContentID picks a stable cache key from the source: the v= query
// parameter of a watch URL, the last path segment, or the file basename.
// Stdin yields no id, so the result is returned without being cached.
func deriveContentID(source string) string {
	if source == "-" {
		return ""
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		u, err := url.Parse(source)
		if err != nil {
			return ""
		}
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return last
		}
		return u.Hostname()
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeResult(result *models.AnalysisResult, format, outPath string) error {
	doc := dashboard.Render(result)

	var rendered string
	switch format {
	case "term":
		renderTerminal(doc)
		return nil
	case "json":
		if outPath == "" {
			return printJSON(result)
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		rendered = string(data) + "\n"
	case "markdown", "md":
		rendered = doc.Markdown()
	case "html":
		body, err := doc.HTML()
		if err != nil {
			return err
		}
		rendered = body
	}

	if outPath == "" {
		_, err := os.Stdout.WriteString(rendered)
		return err
	}
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return err
	}
	pterm.Success.Printfln("wrote %s", outPath)
	return nil
}

func renderTerminal(doc dashboard.Document) {
	pterm.DefaultSection.Println(doc.Title)

	for _, sec := range doc.Sections {
		if sec.Kind == dashboard.SectionWordCloud {
			pterm.Info.Println("word cloud image attached; render it with --format html")
			continue
		}
		pterm.DefaultSection.WithLevel(2).Println(sec.Title)
		if len(sec.Rows) > 0 {
			data := pterm.TableData{}
			for _, row := range sec.Rows {
				data = append(data, []string{row.Label, row.Value})
			}
			_ = pterm.DefaultTable.WithData(data).Render()
		}
		for _, line := range sec.Lines {
			pterm.Println(line)
		}
	}
}
