package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tubelens/core/internal/config"
)

// backupDir resolves the local archive directory. The environment variable
// overrides the configured path so operators can redirect a single run.
func (h *Handler) backupDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvBackupDir)); dir != "" {
		return config.ResolveRuntimePath(dir, "")
	}
	return h.runtime.BackupDir()
}

func listBackups(backupDir string) []backupItem {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil
	}
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil
	}
	var items []backupItem
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, backupItem{
			Filename: e.Name(),
			Size:     formatSize(info.Size()),
		})
	}
	if items == nil {
		items = []backupItem{}
	}
	return items
}

func (h *Handler) createLocalBackupArtifact(now time.Time) (*backupArtifact, error) {
	buf, err := h.createBackupZip()
	if err != nil {
		return nil, err
	}
	backupDir := h.backupDir()
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("backup-%s.zip", now.Format("2006-01-02T15-04-05"))
	filePath := filepath.Join(backupDir, filename)
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	return &backupArtifact{
		Filename: filename,
		Path:     filePath,
		Buffer:   buf,
	}, nil
}

// createBackupZip exports all tables as BSON into a zip archive.
func (h *Handler) createBackupZip() (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	exportedTables := make([]string, 0, len(backupTableNames))
	for _, table := range backupTableNames {
		var rows []map[string]interface{}
		if err := h.db.Table(table).Find(&rows).Error; err != nil {
			continue
		}

		payload, err := encodeBSONRows(rows)
		if err != nil {
			continue
		}

		f, err := w.Create(path.Join(backupDBDir, table+".bson"))
		if err != nil {
			continue
		}
		if len(payload) > 0 {
			if _, err := f.Write(payload); err != nil {
				continue
			}
		}

		exportedTables = append(exportedTables, table)
	}

	manifest := backupManifest{
		Format:    backupFormat,
		Version:   backupFormatVersion,
		Engine:    "mysql",
		CreatedAt: time.Now().UTC(),
		Tables:    exportedTables,
	}
	if manifestData, err := json.Marshal(manifest); err == nil {
		if mf, err := w.Create(backupManifestFile); err == nil {
			_, _ = mf.Write(manifestData)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Run creates a local archive and, when the runtime config allows it,
// pushes it to S3. Cron and CLI callers share this path.
func (h *Handler) Run(ctx context.Context) (*RunResult, error) {
	now := time.Now()
	artifact, err := h.createLocalBackupArtifact(now)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Filename: artifact.Filename,
		Size:     int64(artifact.Buffer.Len()),
	}

	if h.runtime == nil || !h.runtime.S3.Enabled() {
		return result, nil
	}

	uploader, err := newS3Uploader(h.runtime.S3)
	if err != nil {
		h.logger.Warn("s3 uploader unavailable", zap.Error(err))
		return result, nil
	}

	key := renderBackupObjectKey(h.runtime.Backup.Path, artifact.Filename, now)
	url, err := uploader.Upload(ctx, key, artifact.Buffer.Bytes(), "application/zip")
	if err != nil {
		h.logger.Warn("scheduled s3 upload failed", zap.Error(err))
		return result, nil
	}

	result.Uploaded = true
	result.S3URL = url
	return result, nil
}
