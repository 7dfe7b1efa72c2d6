package health

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/modules/analysis/remote"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	pkgmail "github.com/tubelens/core/internal/pkg/mail"
	"github.com/tubelens/core/internal/pkg/nativelog"
	redisc "github.com/tubelens/core/internal/pkg/redis"
	"github.com/tubelens/core/internal/pkg/response"
)

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

// Handler reports agent liveness and exposes operator utilities: an
// on-demand probe of the analysis service, a mail test, and native log
// management.
type Handler struct {
	db        *gorm.DB
	rc        *redisc.Client
	remote    *remote.Client
	settings  *settings.Service
	runtime   *config.AppConfig
	startedAt time.Time
}

func NewHandler(db *gorm.DB, rc *redisc.Client, remoteClient *remote.Client, settingsSvc *settings.Service, runtime *config.AppConfig) *Handler {
	return &Handler{
		db:        db,
		rc:        rc,
		remote:    remoteClient,
		settings:  settingsSvc,
		runtime:   runtime,
		startedAt: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.liveness)

	admin := rg.Group("/health", authMW)

	admin.GET("/remote", h.remoteProbe)
	admin.GET("/email/test", h.emailTest)

	logGroup := admin.Group("/log")
	{
		logGroup.GET("/list", h.logList)
		logGroup.GET("", h.logRead)
		logGroup.DELETE("", h.logDelete)
	}
}

// GET /health
func (h *Handler) liveness(c *gin.Context) {
	dbOK := false
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			dbOK = sqlDB.Ping() == nil
		}
	}

	degraded := !dbOK
	payload := gin.H{
		"status":   "ok",
		"version":  config.Version,
		"database": dbOK,
		"uptime":   int64(time.Since(h.startedAt).Seconds()),
	}
	if h.rc != nil {
		redisOK := h.rc.Raw().Ping(c.Request.Context()).Err() == nil
		payload["redis"] = redisOK
		degraded = degraded || !redisOK
	}

	code := http.StatusOK
	if degraded {
		payload["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, payload)
}

// GET /health/remote probes the analysis service with the current
// settings record, the same call the scheduled probe makes.
func (h *Handler) remoteProbe(c *gin.Context) {
	current, err := h.settings.Get()
	if err != nil {
		response.InternalError(c, err)
		return
	}

	endpoint := current.HealthEndpoint()
	status, err := h.remote.Health(c.Request.Context(), current)
	if err != nil {
		response.OK(c, gin.H{
			"healthy":  false,
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return
	}
	response.OK(c, gin.H{
		"healthy":  true,
		"endpoint": endpoint,
		"service":  status,
	})
}

// GET /health/email/test
func (h *Handler) emailTest(c *gin.Context) {
	if h.runtime == nil || !h.runtime.Notify.Mail.Enable {
		response.UnprocessableEntity(c, "mail is not enabled")
		return
	}

	to := strings.TrimSpace(h.runtime.Notify.AlertTo)
	if to == "" {
		var owner struct{ Mail string }
		h.db.Table("owners").Select("mail").Scan(&owner)
		to = strings.TrimSpace(owner.Mail)
	}
	if to == "" {
		response.UnprocessableEntity(c, "no alert address configured and owner email not set")
		return
	}

	sender := pkgmail.New(pkgmail.BuildMailConfig(h.runtime))
	if err := sender.Send(pkgmail.Message{
		To:      []string{to},
		Subject: "[TubeLens] mail test",
		HTML:    "<h1>Mail is configured correctly.</h1><p>This message confirms the agent can deliver alerts.</p>",
	}); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}

	response.OK(c, gin.H{"ok": true, "to": to})
}

// GET /health/log/list
func (h *Handler) logList(c *gin.Context) {
	logDir := nativelog.ResolveDir()
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.OK(c, []logItem{})
			return
		}
		response.BadRequest(c, "log dir not exists")
		return
	}

	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, logItem{
			Size:     formatByteSize(info.Size()),
			Filename: entry.Name(),
			Created:  info.ModTime().UnixMilli(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Created > items[j].Created
	})
	response.OK(c, items)
}

// GET /health/log?filename=
func (h *Handler) logRead(c *gin.Context) {
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		response.UnprocessableEntity(c, "filename must be string")
		return
	}
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		response.UnprocessableEntity(c, "filename must be string")
		return
	}

	data, err := os.ReadFile(filepath.Join(nativelog.ResolveDir(), filename))
	if err != nil {
		response.BadRequest(c, "log file not exists")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// DELETE /health/log?filename=
// Today's stream and the error log stay open in the process, so they are
// truncated instead of removed.
func (h *Handler) logDelete(c *gin.Context) {
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		response.UnprocessableEntity(c, "filename must be string")
		return
	}
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		response.UnprocessableEntity(c, "filename must be string")
		return
	}

	logDir := nativelog.ResolveDir()
	targetPath := filepath.Join(logDir, filename)
	todayPath := filepath.Join(logDir, nativelog.TodayFilename(time.Now()))

	if strings.HasSuffix(strings.ToLower(targetPath), "error.log") || samePath(targetPath, todayPath) {
		if err := os.WriteFile(targetPath, []byte(""), 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
			response.InternalError(c, err)
			return
		}
	} else if err := os.Remove(targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		response.InternalError(c, err)
		return
	}

	response.NoContent(c)
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func samePath(a, b string) bool {
	left := filepath.Clean(a)
	right := filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(left, right)
	}
	return left == right
}
