package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"

	"github.com/tubelens/core/internal/config"
)

// RestoreFromZip imports table dumps from a backup zip. Tables present in
// the archive are replaced wholesale inside one transaction; tables the
// archive does not carry stay untouched.
func RestoreFromZip(db *gorm.DB, zr *zip.Reader) error {
	if db == nil || zr == nil {
		return fmt.Errorf("invalid restore input")
	}

	tableEntries := make(map[string]backupEntryCandidate)
	for _, file := range zr.File {
		table, format, ok := parseBackupEntry(file.Name)
		if !ok {
			continue
		}

		table = resolveRestoreTableName(table)
		if table == "" {
			continue
		}

		exist, has := tableEntries[table]
		if !has || (exist.Format != "bson" && format == "bson") {
			tableEntries[table] = backupEntryCandidate{File: file, Format: format}
		}
	}

	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	shouldRollback := true
	defer func() {
		if shouldRollback {
			_ = tx.Rollback().Error
		}
	}()

	fkCheckDisabled := false
	if strings.EqualFold(tx.Dialector.Name(), "mysql") {
		if err := tx.Exec("SET FOREIGN_KEY_CHECKS = 0").Error; err != nil {
			return err
		}
		fkCheckDisabled = true
		defer func() {
			if fkCheckDisabled {
				_ = tx.Exec("SET FOREIGN_KEY_CHECKS = 1").Error
			}
		}()
	}

	columnCache := make(map[string]map[string]tableColumn, len(tableEntries))
	for _, table := range backupTableNames {
		entry, ok := tableEntries[table]
		if !ok {
			continue
		}
		rows, err := decodeBackupRows(entry.File, entry.Format)
		if err != nil {
			return fmt.Errorf("decode backup rows for table %s failed: %w", table, err)
		}

		columns, hasColumns := columnCache[table]
		if !hasColumns {
			columns, err = loadTableColumns(tx, table)
			if err != nil {
				return fmt.Errorf("load table columns for %s failed: %w", table, err)
			}
			columnCache[table] = columns
		}

		normalizedRows := make([]map[string]interface{}, 0, len(rows))
		for _, row := range rows {
			normalized := normalizeRestoreRow(table, row, columns)
			if len(normalized) == 0 {
				continue
			}
			normalizedRows = append(normalizedRows, normalized)
		}

		if err := tx.Exec("DELETE FROM `" + table + "`").Error; err != nil {
			return err
		}
		for idx, row := range normalizedRows {
			if err := tx.Table(table).Create(row).Error; err != nil {
				if isDuplicateConstraintError(err) {
					continue
				}
				return fmt.Errorf("insert row #%d into %s failed: %w", idx+1, table, err)
			}
		}
	}

	if fkCheckDisabled {
		if err := tx.Exec("SET FOREIGN_KEY_CHECKS = 1").Error; err != nil {
			return err
		}
		fkCheckDisabled = false
	}
	if err := migrateLegacySettings(tx); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	shouldRollback = false
	return nil
}

func parseBackupEntry(name string) (table string, format string, ok bool) {
	base := strings.ToLower(strings.TrimSpace(path.Base(name)))
	if base == "" {
		return "", "", false
	}
	if base == "prelude.json" || base == "manifest.json" || strings.HasSuffix(base, ".metadata.json") {
		return "", "", false
	}

	if strings.HasSuffix(base, ".bson") {
		table = strings.TrimSuffix(base, ".bson")
		if table == "" {
			return "", "", false
		}
		return table, "bson", true
	}
	if strings.HasSuffix(base, ".json") {
		table = strings.TrimSuffix(base, ".json")
		if table == "" {
			return "", "", false
		}
		return table, "json", true
	}
	return "", "", false
}

func resolveRestoreTableName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if mapped, ok := restoreTableAliases[name]; ok {
		name = mapped
	}
	if _, ok := backupTableNameSet[name]; !ok {
		return ""
	}
	return name
}

func decodeBackupRows(file *zip.File, format string) ([]map[string]interface{}, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	switch format {
	case "bson":
		return decodeBSONRows(data)
	case "json":
		if len(bytes.TrimSpace(data)) == 0 {
			return []map[string]interface{}{}, nil
		}
		var rows []map[string]interface{}
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unsupported backup format: %s", format)
	}
}

func loadTableColumns(db *gorm.DB, table string) (map[string]tableColumn, error) {
	columnTypes, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return nil, err
	}
	result := make(map[string]tableColumn, len(columnTypes))
	for _, columnType := range columnTypes {
		name := strings.ToLower(strings.TrimSpace(columnType.Name()))
		if name == "" {
			continue
		}
		result[name] = tableColumn{
			DBType: strings.ToUpper(strings.TrimSpace(columnType.DatabaseTypeName())),
		}
	}
	return result, nil
}

func normalizeRestoreRow(table string, row map[string]interface{}, columns map[string]tableColumn) map[string]interface{} {
	if len(row) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(row))
	for key, value := range row {
		column := normalizeRestoreColumnName(table, key)
		if column == "" {
			continue
		}
		columnInfo, ok := columns[column]
		if !ok {
			continue
		}
		normalizedValue, ok := normalizeRestoreValue(column, value, columnInfo.DBType)
		if !ok {
			continue
		}
		result[column] = normalizedValue
	}
	ensureRestoreBaseTimestamps(result)
	return result
}

func normalizeRestoreColumnName(table, name string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	raw := strings.TrimSpace(name)
	lower := strings.ToLower(raw)
	if lower == "" || lower == "__v" {
		return ""
	}
	if table == "options" && lower == "_id" {
		// options.id is AUTO_INCREMENT; importing mongo _id would break insert.
		return ""
	}

	snake := strings.ToLower(camelToSnake(raw))
	if tableAliases, ok := restoreColumnAliasesByTable[table]; ok {
		for _, key := range []string{lower, snake} {
			if mapped, exists := tableAliases[key]; exists {
				return mapped
			}
		}
	}
	for _, key := range []string{lower, snake} {
		if mapped, ok := restoreColumnAliases[key]; ok {
			return mapped
		}
	}
	if snake != "" {
		return snake
	}
	return lower
}

func normalizeRestoreValue(column string, value interface{}, dbType string) (interface{}, bool) {
	value = normalizeBSONValue(value)
	if value == nil {
		return nil, true
	}

	if isTimeLikeType(dbType) {
		if ts, ok := normalizeRestoreTime(value); ok {
			return ts, true
		}
		if strings.EqualFold(column, "updated_at") || isZeroLikeTimeValue(value) {
			return nil, true
		}
		return nil, false
	}

	switch v := value.(type) {
	case map[string]interface{}, []interface{}:
		if isJSONLikeType(dbType) || isTextLikeType(dbType) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, false
			}
			return string(data), true
		}
		return nil, false
	case []byte:
		if isJSONLikeType(dbType) || isTextLikeType(dbType) {
			return string(v), true
		}
		return v, true
	case string:
		if isTimeLikeType(dbType) {
			if ts, ok := parseTimeString(v); ok {
				return ts, true
			}
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				if ts, ok := unixNumberToTime(n); ok {
					return ts, true
				}
			}
		}
		return v, true
	default:
		return v, true
	}
}

func normalizeRestoreTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case primitive.DateTime:
		return v.Time(), true
	case int64:
		return unixNumberToTime(float64(v))
	case int32:
		return unixNumberToTime(float64(v))
	case int:
		return unixNumberToTime(float64(v))
	case float64:
		return unixNumberToTime(v)
	case float32:
		return unixNumberToTime(float64(v))
	case string:
		if ts, ok := parseTimeString(v); ok {
			return ts, true
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return unixNumberToTime(n)
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func isZeroLikeTimeValue(value interface{}) bool {
	switch v := value.(type) {
	case int64:
		return v == 0
	case int32:
		return v == 0
	case int:
		return v == 0
	case float64:
		return v == 0
	case float32:
		return v == 0
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "" || s == "0" || s == "null" || s == "0000-00-00" || s == "0000-00-00 00:00:00"
	case time.Time:
		return v.IsZero()
	case primitive.DateTime:
		return v.Time().IsZero()
	default:
		return false
	}
}

func ensureRestoreBaseTimestamps(row map[string]interface{}) {
	updated, hasUpdated := row["updated_at"]
	if !hasUpdated {
		return
	}
	if updated == nil {
		return
	}
	if updatedAt, ok := updated.(time.Time); ok {
		if updatedAt.IsZero() {
			row["updated_at"] = nil
		}
		return
	}
	row["updated_at"] = nil
}

// migrateLegacySettings folds option rows written under older names into
// the single "settings" row, merging each onto the defaults so partial
// exports still produce a complete record.
func migrateLegacySettings(tx *gorm.DB) error {
	type optionRow struct {
		Name  string
		Value string
	}

	var options []optionRow
	if err := tx.Table("options").Select("name, value").Find(&options).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}

	merged := config.DefaultSettings()
	found := false
	var legacyNames []string
	for _, option := range options {
		name := strings.ToLower(camelToSnake(strings.TrimSpace(option.Name)))
		if _, ok := legacySettingsOptionNames[name]; !ok {
			continue
		}
		if err := json.Unmarshal([]byte(option.Value), &merged); err != nil {
			continue
		}
		found = true
		if name != "settings" || option.Name != "settings" {
			legacyNames = append(legacyNames, option.Name)
		}
	}
	if !found {
		return nil
	}
	if merged.MaxComments < 1 {
		merged.MaxComments = config.DefaultMaxComments
	}
	if strings.TrimSpace(merged.APIURL) == "" {
		merged.APIURL = config.DefaultAPIURL
	}

	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return err
	}

	for _, name := range legacyNames {
		if err := tx.Exec("DELETE FROM `options` WHERE `name` = ?", name).Error; err != nil {
			return err
		}
	}
	if err := tx.Exec("DELETE FROM `options` WHERE `name` = ?", "settings").Error; err != nil {
		return err
	}
	return tx.Table("options").Create(map[string]interface{}{
		"name":  "settings",
		"value": string(mergedRaw),
	}).Error
}
