package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tubelens/core/internal/config"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, dbMock
}

func newBackupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group(""), func(c *gin.Context) { c.Next() })
	return router
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.50 KB", formatSize(1536))
	assert.Equal(t, "2.00 MB", formatSize(2<<20))
	assert.Equal(t, "3.00 GB", formatSize(3<<30))
}

func TestRenderBackupObjectKey(t *testing.T) {
	now := time.Date(2026, 8, 23, 9, 5, 7, 0, time.UTC)

	key := renderBackupObjectKey("snapshots/{Y}/{m}/{d}/{filename}", "backup.zip", now)
	assert.Equal(t, "snapshots/2026/08/23/backup.zip", key)

	key = renderBackupObjectKey("", "backup.zip", now)
	assert.Equal(t, "backups/2026/08/backup.zip", key)

	key = renderBackupObjectKey(`\archive\\{H}{M}{s}\{filename}`, "b.zip", now)
	assert.Equal(t, "archive/090507/b.zip", key)

	assert.Equal(t, "b.zip", renderBackupObjectKey("/", "b.zip", now))
}

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"videoId":     "video_id",
		"VideoID":     "video_id",
		"HTMLBody":    "html_body",
		"analyzed_at": "analyzed_at",
		"Created-At":  "created_at",
		"max comments": "max_comments",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, camelToSnake(in), "input %q", in)
	}
}

func TestNormalizeRestoreColumnName(t *testing.T) {
	assert.Equal(t, "content_id", normalizeRestoreColumnName("analysis_records", "videoId"))
	assert.Equal(t, "title", normalizeRestoreColumnName("analysis_records", "video_title"))
	assert.Equal(t, "id", normalizeRestoreColumnName("analysis_records", "_id"))
	assert.Equal(t, "analyzed_at", normalizeRestoreColumnName("analysis_records", "analyzedAt"))

	// expiry naming differs per table
	assert.Equal(t, "expires_at", normalizeRestoreColumnName("owner_sessions", "expiredAt"))
	assert.Equal(t, "expired_at", normalizeRestoreColumnName("api_tokens", "expiredAt"))

	// mongo artifacts never map to real columns
	assert.Empty(t, normalizeRestoreColumnName("analysis_records", "__v"))
	assert.Empty(t, normalizeRestoreColumnName("options", "_id"))

	// unknown names fall through as snake case
	assert.Equal(t, "some_field", normalizeRestoreColumnName("owners", "someField"))
}

func TestParseBackupEntry(t *testing.T) {
	table, format, ok := parseBackupEntry("tubelens/db/analysis_records.bson")
	require.True(t, ok)
	assert.Equal(t, "analysis_records", table)
	assert.Equal(t, "bson", format)

	table, format, ok = parseBackupEntry("export/records.json")
	require.True(t, ok)
	assert.Equal(t, "records", table)
	assert.Equal(t, "json", format)

	for _, name := range []string{
		"tubelens/manifest.json",
		"prelude.json",
		"db/owners.metadata.json",
		"readme.txt",
		".bson",
	} {
		_, _, ok := parseBackupEntry(name)
		assert.False(t, ok, "entry %q should be skipped", name)
	}
}

func TestResolveRestoreTableName(t *testing.T) {
	assert.Equal(t, "analysis_records", resolveRestoreTableName("records"))
	assert.Equal(t, "analysis_records", resolveRestoreTableName("results"))
	assert.Equal(t, "owners", resolveRestoreTableName("users"))
	assert.Equal(t, "options", resolveRestoreTableName("OPTIONS"))
	assert.Empty(t, resolveRestoreTableName("posts"))
	assert.Empty(t, resolveRestoreTableName(""))
}

func TestBSONRowsRoundTrip(t *testing.T) {
	rows := []map[string]interface{}{
		{"content_id": "vid-1", "title": "Launch Recap"},
		{"content_id": "vid-2", "result": map[string]interface{}{"sentiment": "NEGATIVE"}},
	}

	payload, err := encodeBSONRows(rows)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := decodeBSONRows(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "vid-1", decoded[0]["content_id"])
	assert.Equal(t, "Launch Recap", decoded[0]["title"])
	assert.Equal(t, "vid-2", decoded[1]["content_id"])

	empty, err := decodeBSONRows(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeBSONRowsRejectsTruncated(t *testing.T) {
	payload, err := encodeBSONRows([]map[string]interface{}{{"a": "b"}})
	require.NoError(t, err)

	_, err = decodeBSONRows(payload[:len(payload)-3])
	assert.Error(t, err)

	_, err = decodeBSONRows([]byte{0x02})
	assert.Error(t, err)
}

func TestNormalizeBSONValue(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), normalizeBSONValue(oid))
	assert.Nil(t, normalizeBSONValue(primitive.Null{}))
	assert.Nil(t, normalizeBSONValue(nil))

	at := primitive.NewDateTimeFromTime(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	ts, ok := normalizeBSONValue(at).(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())

	nested := primitive.M{"list": primitive.A{primitive.Null{}, "x"}}
	got, ok := normalizeBSONValue(nested).(map[string]interface{})
	require.True(t, ok)
	list, ok := got["list"].([]interface{})
	require.True(t, ok)
	assert.Nil(t, list[0])
	assert.Equal(t, "x", list[1])

	assert.Equal(t, "bytes", normalizeBSONValue([]byte("bytes")))
}

func TestUnixNumberToTime(t *testing.T) {
	ts, ok := unixNumberToTime(1724400000000) // milliseconds
	require.True(t, ok)
	assert.Equal(t, int64(1724400000), ts.Unix())

	ts, ok = unixNumberToTime(1724400000) // seconds
	require.True(t, ok)
	assert.Equal(t, int64(1724400000), ts.Unix())

	_, ok = unixNumberToTime(42)
	assert.False(t, ok)
	_, ok = unixNumberToTime(0)
	assert.False(t, ok)
}

func TestParseTimeString(t *testing.T) {
	ts, ok := parseTimeString("2026-08-23T09:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 23, ts.Day())

	ts, ok = parseTimeString("2026-08-23 09:00:00")
	require.True(t, ok)
	assert.Equal(t, 9, ts.Hour())

	_, ok = parseTimeString("not a time")
	assert.False(t, ok)
	_, ok = parseTimeString("")
	assert.False(t, ok)
}

func TestIsDuplicateConstraintError(t *testing.T) {
	assert.True(t, isDuplicateConstraintError(&mysqlDriver.MySQLError{Number: 1062, Message: "dup"}))
	assert.True(t, isDuplicateConstraintError(errors.New("Duplicate entry 'vid-1' for key 'content_id'")))
	assert.True(t, isDuplicateConstraintError(errors.New("UNIQUE constraint failed")))
	assert.False(t, isDuplicateConstraintError(errors.New("connection refused")))
	assert.False(t, isDuplicateConstraintError(nil))
}

func TestNormalizeRestoreRow(t *testing.T) {
	columns := map[string]tableColumn{
		"id":          {DBType: "BIGINT"},
		"created_at":  {DBType: "DATETIME"},
		"updated_at":  {DBType: "DATETIME"},
		"content_id":  {DBType: "VARCHAR"},
		"title":       {DBType: "VARCHAR"},
		"result":      {DBType: "LONGTEXT"},
		"analyzed_at": {DBType: "DATETIME"},
	}

	// A dump written by the page extension: camelCase keys, epoch millis.
	row := map[string]interface{}{
		"videoId":    "vid-42",
		"videoTitle": "Launch Recap",
		"result":     map[string]interface{}{"sentiment": "POSITIVE"},
		"analyzedAt": int64(1724400000000),
		"createdAt":  "2026-08-01T10:00:00Z",
		"updatedAt":  0,
		"__v":        3,
		"mystery":    "nope",
	}

	got := normalizeRestoreRow("analysis_records", row, columns)
	require.NotNil(t, got)

	assert.Equal(t, "vid-42", got["content_id"])
	assert.Equal(t, "Launch Recap", got["title"])
	assert.JSONEq(t, `{"sentiment":"POSITIVE"}`, got["result"].(string))

	analyzedAt, ok := got["analyzed_at"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, int64(1724400000), analyzedAt.Unix())

	createdAt, ok := got["created_at"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.August, createdAt.Month())

	// A zero epoch cannot be a real update time.
	updated, present := got["updated_at"]
	require.True(t, present)
	assert.Nil(t, updated)

	assert.NotContains(t, got, "__v")
	assert.NotContains(t, got, "mystery")
}

func TestCreateBackupZip(t *testing.T) {
	db, dbMock := newMockDB(t)

	dbMock.ExpectQuery("SELECT(.+)FROM `owners`").WillReturnError(fmt.Errorf("table gone"))
	dbMock.ExpectQuery("SELECT(.+)FROM `owner_sessions`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	dbMock.ExpectQuery("SELECT(.+)FROM `api_tokens`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	dbMock.ExpectQuery("SELECT(.+)FROM `analysis_records`").
		WillReturnRows(sqlmock.NewRows([]string{"content_id", "title"}).
			AddRow("vid-1", "Launch Recap"))
	dbMock.ExpectQuery("SELECT(.+)FROM `analysis_logs`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	dbMock.ExpectQuery("SELECT(.+)FROM `webhooks`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	dbMock.ExpectQuery("SELECT(.+)FROM `webhook_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	dbMock.ExpectQuery("SELECT(.+)FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("settings", `{"autoAnalyze":true}`))

	h := NewHandler(db, nil, nil, nil)
	buf, err := h.createBackupZip()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = data
	}

	require.Contains(t, entries, "tubelens/db/analysis_records.bson")
	require.Contains(t, entries, "tubelens/db/options.bson")
	require.Contains(t, entries, "tubelens/manifest.json")
	assert.NotContains(t, entries, "tubelens/db/owners.bson")

	rows, err := decodeBSONRows(entries["tubelens/db/analysis_records.bson"])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "vid-1", rows[0]["content_id"])

	var manifest backupManifest
	require.NoError(t, json.Unmarshal(entries["tubelens/manifest.json"], &manifest))
	assert.Equal(t, "tubelens-bson", manifest.Format)
	assert.Equal(t, 1, manifest.Version)
	assert.Contains(t, manifest.Tables, "analysis_records")
	assert.Contains(t, manifest.Tables, "options")
	assert.NotContains(t, manifest.Tables, "owners")

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func expectEmptyTableDumps(dbMock sqlmock.Sqlmock) {
	for _, table := range backupTableNames {
		dbMock.ExpectQuery("SELECT(.+)FROM `" + table + "`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}
}

func TestRunWritesLocalArchive(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(EnvBackupDir, tmp)

	db, dbMock := newMockDB(t)
	expectEmptyTableDumps(dbMock)

	h := NewHandler(db, nil, nil, nil)
	result, err := h.Run(t.Context())
	require.NoError(t, err)

	assert.True(t, len(result.Filename) > len("backup-.zip"))
	assert.Contains(t, result.Filename, "backup-")
	assert.False(t, result.Uploaded)
	assert.Empty(t, result.S3URL)

	info, err := os.Stat(filepath.Join(tmp, result.Filename))
	require.NoError(t, err)
	assert.Equal(t, result.Size, info.Size())

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestListBackups(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "backup-a.zip"), make([]byte, 1536), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(tmp, "nested.zip"), 0o755))

	items := listBackups(tmp)
	require.Len(t, items, 1)
	assert.Equal(t, "backup-a.zip", items[0].Filename)
	assert.Equal(t, "1.50 KB", items[0].Size)

	empty := listBackups(filepath.Join(tmp, "fresh"))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMigrateLegacySettings(t *testing.T) {
	db, dbMock := newMockDB(t)

	dbMock.ExpectQuery("SELECT name, value FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("appSettings", `{"maxComments":250}`).
			AddRow("unrelated", "x"))
	dbMock.ExpectExec("DELETE FROM `options` WHERE `name`").
		WithArgs("appSettings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("DELETE FROM `options` WHERE `name`").
		WithArgs("settings").
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO `options`").
		WithArgs("settings", `{"autoAnalyze":true,"maxComments":250,"showWordCloud":true,"apiUrl":"http://localhost:8000"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectCommit()

	require.NoError(t, migrateLegacySettings(db))
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestMigrateLegacySettingsNoLegacyRows(t *testing.T) {
	db, dbMock := newMockDB(t)

	dbMock.ExpectQuery("SELECT name, value FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("unrelated", "x"))

	require.NoError(t, migrateLegacySettings(db))
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestDownloadAndDeleteEndpoints(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(EnvBackupDir, tmp)

	archive := filepath.Join(tmp, "backup-x.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip bytes"), 0o644))

	db, _ := newMockDB(t)
	router := newBackupRouter(NewHandler(db, nil, nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/backups/backup-x.zip", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zip bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "backup-x.zip")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/backups/missing.zip", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/backups/notes.txt", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/backups/backup-x.zip", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
}

func TestListEndpoint(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(EnvBackupDir, tmp)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "backup-a.zip"), []byte("abc"), 0o644))

	db, _ := newMockDB(t)
	router := newBackupRouter(NewHandler(db, nil, nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/backups", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []backupItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "backup-a.zip", body.Data[0].Filename)
}

func TestUploadAndRestoreRejectsInvalidZip(t *testing.T) {
	db, _ := newMockDB(t)
	router := newBackupRouter(NewHandler(db, nil, nil, nil))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "bogus.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not a zip"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/backups/rollback", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backups/rollback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func s3Config(bucket, region string) config.S3RuntimeConfig {
	return config.S3RuntimeConfig{
		Bucket:          bucket,
		Region:          region,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}
}

func TestNewS3UploaderValidatesConfig(t *testing.T) {
	_, err := newS3Uploader(s3Config("", "us-east-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete s3 config")

	_, err = newS3Uploader(s3Config("archive", ""))
	require.Error(t, err)

	up, err := newS3Uploader(s3Config("archive", "us-east-1"))
	require.NoError(t, err)
	assert.Equal(t, "s3://archive/a/b.zip", up.publicURL("a/b.zip"))

	withDomain := s3Config("archive", "us-east-1")
	withDomain.CustomDomain = "https://cdn.example.com/"
	up, err = newS3Uploader(withDomain)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.zip", up.publicURL("a.zip"))
}

func TestNormalizeObjectKey(t *testing.T) {
	assert.Equal(t, "a/b.zip", normalizeObjectKey(`\a\\b.zip`))
	assert.Equal(t, "a/b.zip", normalizeObjectKey("/a//b.zip"))
	assert.Empty(t, normalizeObjectKey("  "))
}
