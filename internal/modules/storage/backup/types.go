package backup

import (
	"archive/zip"
	"bytes"
	"time"
)

const backupRootDir = "tubelens"
const backupDBDir = backupRootDir + "/db"
const backupManifestFile = backupRootDir + "/manifest.json"
const backupFormat = "tubelens-bson"
const backupFormatVersion = 1
const defaultS3PathTemplate = "backups/{Y}/{m}/{filename}"
const EnvBackupDir = "TUBELENS_BACKUP_DIR"

var backupTableNames = []string{
	"owners",
	"owner_sessions",
	"api_tokens",
	"analysis_records",
	"analysis_logs",
	"webhooks",
	"webhook_events",
	"options",
}

var backupTableNameSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(backupTableNames))
	for _, table := range backupTableNames {
		set[table] = struct{}{}
	}
	return set
}()

// restoreTableAliases maps table names found in older or foreign dumps to
// the current schema.
var restoreTableAliases = map[string]string{
	"users":    "owners",
	"sessions": "owner_sessions",
	"tokens":   "api_tokens",
	"records":  "analysis_records",
	"results":  "analysis_records",
	"analyses": "analysis_records",
	"logs":     "analysis_logs",
	"analyzes": "analysis_logs",
}

// restoreColumnAliases covers mongo-era names and the camelCase keys of
// dumps written by the page extension.
var restoreColumnAliases = map[string]string{
	"_id":           "id",
	"created":       "created_at",
	"modified":      "updated_at",
	"createdat":     "created_at",
	"updatedat":     "updated_at",
	"video_id":      "content_id",
	"videoid":       "content_id",
	"video_title":   "title",
	"videotitle":    "title",
	"analyzedat":    "analyzed_at",
	"messageid":     "message_id",
	"errorkind":     "error_kind",
	"durationms":    "duration_ms",
	"ipaddress":     "ip",
	"useragent":     "ua",
	"payloadurl":    "payload_url",
	"ownerid":       "owner_id",
	"expiredat":     "expired_at",
	"lastlogintime": "last_login_time",
	"lastloginip":   "last_login_ip",
}

// Sessions expire via expires_at while api_tokens use expired_at; the
// global alias would send a session dump's expiredAt to the wrong name.
var restoreColumnAliasesByTable = map[string]map[string]string{
	"owner_sessions": {
		"expiredat":  "expires_at",
		"expired_at": "expires_at",
	},
}

// legacySettingsOptionNames are option rows that older exports used for
// the settings record. They fold into the single "settings" row.
var legacySettingsOptionNames = map[string]struct{}{
	"settings":          {},
	"app_settings":      {},
	"appsettings":       {},
	"tubelens_settings": {},
	"tubelenssettings":  {},
	"analysis_settings": {},
	"analysissettings":  {},
}

type backupManifest struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
	Tables    []string  `json:"tables"`
}

type backupEntryCandidate struct {
	File   *zip.File
	Format string
}

type tableColumn struct {
	DBType string
}

type backupItem struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
}

type backupArtifact struct {
	Filename string
	Path     string
	Buffer   *bytes.Buffer
}

// RunResult summarizes one backup run for cron and notifications.
type RunResult struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Uploaded bool   `json:"uploaded"`
	S3URL    string `json:"s3_url,omitempty"`
}
