package stats

import (
	"database/sql"
	"time"

	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/envelope"
	"github.com/tubelens/core/internal/pkg/pagination"
	"github.com/tubelens/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Service records one log row per routed message and aggregates them.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Record persists one routed-message log entry.
func (s *Service) Record(entry *models.AnalysisLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return s.db.Create(entry).Error
}

// Summary aggregates counters across the whole log. Queries run in a
// fixed order so callers see a consistent snapshot per invocation.
func (s *Service) Summary() (Summary, error) {
	out := Summary{
		ByType:      map[string]int64{},
		ByErrorKind: map[string]int64{},
	}

	if err := s.db.Model(&models.AnalysisLog{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := s.db.Model(&models.AnalysisLog{}).
		Where("success = ?", true).
		Count(&out.Succeeded).Error; err != nil {
		return out, err
	}
	out.Failed = out.Total - out.Succeeded

	if err := s.db.Model(&models.AnalysisLog{}).
		Where("timestamp >= ?", beginningOfDay(time.Now())).
		Count(&out.Today).Error; err != nil {
		return out, err
	}

	var avg sql.NullFloat64
	if err := s.db.Model(&models.AnalysisLog{}).
		Select("AVG(duration_ms)").
		Where("type = ?", string(envelope.MessageAnalyzeComments)).
		Scan(&avg).Error; err != nil {
		return out, err
	}
	if avg.Valid {
		out.AvgAnalyzeMS = avg.Float64
	}

	var byType []groupCount
	if err := s.db.Model(&models.AnalysisLog{}).
		Select("type AS `key`, COUNT(*) AS count").
		Group("type").
		Scan(&byType).Error; err != nil {
		return out, err
	}
	for _, row := range byType {
		out.ByType[row.Key] = row.Count
	}

	var byKind []groupCount
	if err := s.db.Model(&models.AnalysisLog{}).
		Select("error_kind AS `key`, COUNT(*) AS count").
		Where("success = ? AND error_kind <> ''", false).
		Group("error_kind").
		Scan(&byKind).Error; err != nil {
		return out, err
	}
	for _, row := range byKind {
		out.ByErrorKind[row.Key] = row.Count
	}

	return out, nil
}

// Daily buckets log entries per calendar day for the last days days,
// oldest first, including empty buckets.
func (s *Service) Daily(days int) ([]DayCount, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	dayStart := beginningOfDay(time.Now())
	start := dayStart.AddDate(0, 0, -(days - 1))

	var rows []struct {
		Timestamp time.Time `gorm:"column:timestamp"`
	}
	if err := s.db.Model(&models.AnalysisLog{}).
		Select("timestamp").
		Where("timestamp >= ?", start).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	for _, row := range rows {
		counts[row.Timestamp.In(time.Local).Format("2006-01-02")]++
	}

	out := make([]DayCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := dayStart.AddDate(0, 0, -i).Format("2006-01-02")
		out = append(out, DayCount{Date: key, Count: counts[key]})
	}
	return out, nil
}

// Recent lists log entries newest first with optional filters.
func (s *Service) Recent(q pagination.Query, sq statsQuery) ([]models.AnalysisLog, response.Pagination, error) {
	tx := s.db.Model(&models.AnalysisLog{}).Order("timestamp DESC")
	if sq.From != nil {
		tx = tx.Where("timestamp >= ?", *sq.From)
	}
	if sq.To != nil {
		tx = tx.Where("timestamp <= ?", *sq.To)
	}
	if sq.Type != "" {
		tx = tx.Where("type = ?", sq.Type)
	}

	var items []models.AnalysisLog
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// CleanOld hard-deletes log entries older than the cutoff.
func (s *Service) CleanOld(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tx := s.db.Unscoped().Where("timestamp < ?", cutoff).Delete(&models.AnalysisLog{})
	return tx.RowsAffected, tx.Error
}

func beginningOfDay(t time.Time) time.Time {
	local := t.In(time.Local)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
