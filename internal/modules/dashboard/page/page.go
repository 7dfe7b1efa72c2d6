package page

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/modules/analysis/results"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	"github.com/tubelens/core/internal/pkg/dashboard"
	"github.com/tubelens/core/internal/pkg/pagination"
)

const (
	baseAPIPath      = "/api/v1"
	gatewayPath      = "/socket.io"
	webAssetBasePath = "/dashboard/assets"

	recentPageSize = 20
)

// Handler serves server-rendered dashboards of cached analysis results
// and, when a web bundle is deployed next to the binary, its static assets.
type Handler struct {
	results  *results.Service
	settings *settings.Service
	webPath  string
}

func NewHandler(resultsSvc *results.Service, settingsSvc *settings.Service, runtime *config.AppConfig) *Handler {
	webPath := strings.TrimSpace(os.Getenv("TUBELENS_WEB_ASSET_PATH"))
	if webPath == "" {
		webPath = runtime.WebDir()
	}
	return &Handler{
		results:  resultsSvc,
		settings: settingsSvc,
		webPath:  filepath.Clean(webPath),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.serveWebEntry)
	rg.GET("/dashboard/assets/*filepath", h.serveWebAsset)
	rg.GET("/dashboard/recent", h.renderRecent)
	rg.GET("/dashboard/view/:contentId", h.renderRecord)
}

// renderRecord projects one cached result into the requested format.
// html (default) wraps the rendered document in a page shell, markdown
// returns the raw document, json returns the stored record.
func (h *Handler) renderRecord(c *gin.Context) {
	contentID := strings.TrimSpace(c.Param("contentId"))
	if contentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "content id is required"})
		return
	}

	record, _, err := h.results.GetByContentID(c.Request.Context(), contentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no analysis cached for this content"})
		return
	}

	doc := dashboard.Render(&record.Result)
	switch strings.ToLower(c.DefaultQuery("format", "html")) {
	case "json":
		c.JSON(http.StatusOK, record)
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc.Markdown()))
	case "html":
		body, err := doc.HTML()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		footer := fmt.Sprintf("analyzed %s", record.AnalyzedAt.Format("2006-01-02 15:04"))
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell(doc.Title, body, footer)))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown format, expected html, markdown or json"})
	}
}

// renderRecent lists the most recently analyzed videos with links to
// their dashboards.
func (h *Handler) renderRecent(c *gin.Context) {
	records, _, err := h.results.List(pagination.Query{Page: 1, Size: recentPageSize})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	var sb strings.Builder
	if len(records) == 0 {
		sb.WriteString("<p>No analyses cached yet.</p>")
	} else {
		sb.WriteString("<ul>\n")
		for _, rec := range records {
			title := rec.Title
			if title == "" {
				title = rec.ContentID
			}
			sb.WriteString(fmt.Sprintf(
				"<li><a href=\"/dashboard/view/%s\">%s</a> <small>%s</small></li>\n",
				html.EscapeString(rec.ContentID),
				html.EscapeString(title),
				rec.AnalyzedAt.Format("2006-01-02 15:04"),
			))
		}
		sb.WriteString("</ul>")
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("Recent analyses", sb.String(), "")))
}

func (h *Handler) serveWebEntry(c *gin.Context) {
	entryPath := filepath.Join(h.webPath, "index.html")
	content, err := os.ReadFile(entryPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"message": "dashboard web bundle not found, set paths.web in config.yml (or TUBELENS_WEB_ASSET_PATH) or open /dashboard/recent for the server-rendered view",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	injected := h.injectWebEnv(string(content))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rewriteEntryAssetPath(injected, webAssetBasePath)))
}

func (h *Handler) serveWebAsset(c *gin.Context) {
	relative := strings.TrimPrefix(c.Param("filepath"), "/")
	if relative == "" {
		c.Status(http.StatusNotFound)
		return
	}
	h.serveRelative(c, relative)
}

// serveRelative resolves a bundle-relative path and refuses anything that
// escapes the bundle root.
func (h *Handler) serveRelative(c *gin.Context, relative string) {
	cleanRel := strings.TrimPrefix(filepath.Clean("/"+relative), "/")
	fullPath := filepath.Join(h.webPath, cleanRel)

	webRoot, err := filepath.Abs(h.webPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	targetPath, err := filepath.Abs(fullPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if targetPath != webRoot && !strings.HasPrefix(targetPath, webRoot+string(os.PathSeparator)) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid path"})
		return
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "can't serve directory"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.File(targetPath)
}

// injectWebEnv hands the bundle its runtime wiring: API base path, the
// gateway socket path and a snapshot of the current settings so the page
// boots without an extra round trip.
func (h *Handler) injectWebEnv(entry string) string {
	settingsJSON := "null"
	if h.settings != nil {
		if current, err := h.settings.Get(); err == nil {
			if raw, marshalErr := json.Marshal(current); marshalErr == nil {
				settingsJSON = string(raw)
			}
		}
	}

	script := fmt.Sprintf(
		`<script>window.pageSource='server';window.injectData={BASE_API:%q,GATEWAY:%q,SETTINGS:%s};</script>`,
		baseAPIPath, gatewayPath, settingsJSON,
	)

	if strings.Contains(entry, "<!-- injectable script -->") {
		return strings.Replace(entry, "<!-- injectable script -->", script, 1)
	}
	if strings.Contains(entry, "</head>") {
		return strings.Replace(entry, "</head>", script+"</head>", 1)
	}
	return script + entry
}

const rewriteToken = "__TL_ASSET__"

// rewriteEntryAssetPath points root-absolute src/href references at the
// asset route. Already-prefixed references survive the rewrite via the
// token round trip.
func rewriteEntryAssetPath(entry, assetBasePath string) string {
	assetBase := strings.TrimRight(strings.TrimSpace(assetBasePath), "/")
	if assetBase == "" {
		return entry
	}

	for _, attr := range []string{`src="`, `href="`, `src='`, `href='`} {
		entry = strings.ReplaceAll(entry, attr+assetBase+"/", attr+rewriteToken+"/")
		entry = strings.ReplaceAll(entry, attr+"/", attr+assetBase+"/")
		entry = strings.ReplaceAll(entry, attr+rewriteToken+"/", attr+assetBase+"/")
	}
	return entry
}

func pageShell(title, body, footer string) string {
	footerHTML := ""
	if footer != "" {
		footerHTML = fmt.Sprintf(`<p class="footer">%s</p>`, html.EscapeString(footer))
	}
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>%s</title>
  <style>
    body { margin: 0; padding: 24px; font: 16px/1.6 -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; color: #111; background: #fff; }
    main { max-width: 760px; margin: 0 auto; }
    code { background: #f4f4f4; border-radius: 4px; padding: 2px 6px; }
    table { border-collapse: collapse; }
    td, th { border: 1px solid #eee; padding: 4px 10px; }
    img { max-width: 100%%; }
    .footer { color: #999; font-size: 13px; }
  </style>
</head>
<body>
  <main>
%s
%s  </main>
</body>
</html>`, html.EscapeString(title), body, footerHTML)
}
