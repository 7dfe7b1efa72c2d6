package backup

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	redisc "github.com/tubelens/core/internal/pkg/redis"
	"github.com/tubelens/core/internal/pkg/response"
)

// Handler exports and restores the database as BSON-in-zip archives.
type Handler struct {
	db       *gorm.DB
	runtime  *config.AppConfig
	settings *settings.Service
	rc       *redisc.Client
	logger   *zap.Logger
}

func NewHandler(db *gorm.DB, runtime *config.AppConfig, settingsSvc *settings.Service, rc *redisc.Client, opts ...HandlerOption) *Handler {
	h := &Handler{db: db, runtime: runtime, settings: settingsSvc, rc: rc, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandlerOption configures a backup Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for the backup handler.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Named("BackupService")
		}
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/backups", authMW)

	g.GET("", h.list)
	g.GET("/new", h.createAndDownload)
	g.GET("/:filename", h.download)
	g.POST("", h.uploadAndRestore)
	g.POST("/rollback", h.uploadAndRestore)
	g.POST("/upload-to-s3", h.uploadToS3)
	g.PATCH("/rollback/:filename", h.rollback)
	g.PATCH("/:filename", h.rollback)
	g.DELETE("", h.delete)
	g.DELETE("/:filename", h.deleteOne)
}

// GET /backups
func (h *Handler) list(c *gin.Context) {
	items := listBackups(h.backupDir())
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GET /backups/new
func (h *Handler) createAndDownload(c *gin.Context) {
	h.logger.Info("creating database backup")
	artifact, err := h.createLocalBackupArtifact(time.Now())
	if err != nil {
		h.logger.Warn("backup failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename))
	c.Data(http.StatusOK, "application/zip", artifact.Buffer.Bytes())
	h.logger.Info("backup written", zap.String("filename", artifact.Filename))
}

// GET /backups/:filename
func (h *Handler) download(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if !strings.HasSuffix(filename, ".zip") {
		response.BadRequest(c, "invalid filename")
		return
	}
	path := filepath.Join(h.backupDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/zip", data)
}

// POST /backups/rollback
func (h *Handler) uploadAndRestore(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file")
		return
	}

	src, err := file.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		response.BadRequest(c, "invalid zip file")
		return
	}

	if err := RestoreFromZip(h.db, zr); err != nil {
		h.logger.Warn("restore failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	h.invalidateRuntimeCaches(c)
	h.logger.Info("restore finished (uploaded archive)")
	response.OK(c, gin.H{"message": "restore successful"})
}

// PATCH /backups/rollback/:filename
func (h *Handler) rollback(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(h.backupDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		response.BadRequest(c, "invalid zip file")
		return
	}

	h.logger.Info("rolling back to archive", zap.String("filename", filename))
	if err := RestoreFromZip(h.db, zr); err != nil {
		h.logger.Warn("rollback failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	h.invalidateRuntimeCaches(c)
	h.logger.Info("rollback finished")
	response.OK(c, gin.H{"message": "rollback successful"})
}

// invalidateRuntimeCaches drops every cache that may now disagree with
// the restored tables.
func (h *Handler) invalidateRuntimeCaches(c *gin.Context) {
	if h.settings != nil {
		h.settings.Invalidate()
	}
	if h.rc != nil {
		_ = h.rc.Raw().FlushDB(c.Request.Context())
	}
}

// DELETE /backups
func (h *Handler) delete(c *gin.Context) {
	files := strings.TrimSpace(c.Query("files"))

	var body struct {
		Files string `json:"files"`
	}
	if files == "" {
		_ = c.ShouldBindJSON(&body)
		files = strings.TrimSpace(body.Files)
	}
	if files == "" {
		response.BadRequest(c, "missing files")
		return
	}

	backupDir := h.backupDir()
	filenames := strings.Split(files, ",")
	for _, name := range filenames {
		name = strings.TrimSpace(filepath.Base(name))
		if name == "" || !strings.HasSuffix(name, ".zip") {
			continue
		}
		os.Remove(filepath.Join(backupDir, name))
	}
	response.NoContent(c)
}

func (h *Handler) deleteOne(c *gin.Context) {
	filename := strings.TrimSpace(filepath.Base(c.Param("filename")))
	if filename == "" || !strings.HasSuffix(filename, ".zip") {
		response.BadRequest(c, "invalid filename")
		return
	}
	_ = os.Remove(filepath.Join(h.backupDir(), filename))
	response.NoContent(c)
}

// POST /backups/upload-to-s3
func (h *Handler) uploadToS3(c *gin.Context) {
	if h.runtime == nil {
		response.InternalError(c, fmt.Errorf("runtime config is unavailable"))
		return
	}
	if !h.runtime.Backup.Enable {
		// Backup disabled means no-op, matching the scheduled path.
		response.NoContent(c)
		return
	}

	uploader, err := newS3Uploader(h.runtime.S3)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	now := time.Now()
	artifact, err := h.createLocalBackupArtifact(now)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	key := renderBackupObjectKey(h.runtime.Backup.Path, artifact.Filename, now)
	h.logger.Info("uploading backup to s3", zap.String("key", key))
	if _, err := uploader.Upload(c.Request.Context(), key, artifact.Buffer.Bytes(), "application/zip"); err != nil {
		h.logger.Warn("s3 upload failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	h.logger.Info("s3 upload finished")
	response.NoContent(c)
}
