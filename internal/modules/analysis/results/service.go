package results

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/pagination"
	redisc "github.com/tubelens/core/internal/pkg/redis"
	"github.com/tubelens/core/internal/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service keeps the most recent analysis per content id. MySQL holds the
// durable copy, Redis a 24h hot copy for the page client's repeat reads.
// Records are a cache of remote output, so deletes are hard deletes.
type Service struct {
	db *gorm.DB
	rc *redisc.Client
}

func NewService(db *gorm.DB, rc *redisc.Client) *Service {
	return &Service{db: db, rc: rc}
}

func cacheKey(contentID string) string {
	return redisc.Key("result", contentID)
}

// Upsert stores result as the current analysis for contentID, replacing
// any previous one.
func (s *Service) Upsert(ctx context.Context, contentID, title string, result models.AnalysisResult) (*models.AnalysisRecord, error) {
	record := models.AnalysisRecord{
		ContentID:  contentID,
		Title:      title,
		Result:     result,
		AnalyzedAt: time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "result", "analyzed_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the cached copy carries the authoritative row, not the
	// insert candidate (on conflict the existing id wins).
	stored, err := s.fetch(contentID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, stored)
	return stored, nil
}

// GetByContentID returns the current record for contentID, or (nil, ...)
// when none exists. The source reports which store answered so handlers
// can expose it in the served-by header.
func (s *Service) GetByContentID(ctx context.Context, contentID string) (*models.AnalysisRecord, string, error) {
	if s.rc != nil {
		if raw, err := s.rc.Get(ctx, cacheKey(contentID)); err == nil && raw != "" {
			var record models.AnalysisRecord
			if err := json.Unmarshal([]byte(raw), &record); err == nil {
				return &record, ServedByRedis, nil
			}
		}
	}

	record, err := s.fetch(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ServedByMySQL, nil
		}
		return nil, ServedByMySQL, err
	}
	s.cache(ctx, record)
	return record, ServedByMySQL, nil
}

func (s *Service) List(q pagination.Query) ([]models.AnalysisRecord, response.Pagination, error) {
	tx := s.db.Model(&models.AnalysisRecord{}).Order("analyzed_at DESC")
	var items []models.AnalysisRecord
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) Delete(ctx context.Context, contentID string) error {
	tx := s.db.Unscoped().Where("content_id = ?", contentID).Delete(&models.AnalysisRecord{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if s.rc != nil {
		_ = s.rc.Del(ctx, cacheKey(contentID))
	}
	return nil
}

// PurgeStale removes records whose last analysis is older than the
// retention window and reports how many went away. Redis copies expire on
// their own TTL.
func (s *Service) PurgeStale(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tx := s.db.Unscoped().Where("analyzed_at < ?", cutoff).Delete(&models.AnalysisRecord{})
	return tx.RowsAffected, tx.Error
}

// PurgeAll drops every cached analysis along with the Redis hot copies.
func (s *Service) PurgeAll(ctx context.Context) (int64, error) {
	tx := s.db.Unscoped().Where("1 = 1").Delete(&models.AnalysisRecord{})
	if tx.Error != nil {
		return 0, tx.Error
	}
	if s.rc != nil {
		_, _ = s.rc.DelPrefix(ctx, redisc.Key("result", ""))
	}
	return tx.RowsAffected, nil
}

func (s *Service) fetch(contentID string) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	if err := s.db.First(&record, "content_id = ?", contentID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) cache(ctx context.Context, record *models.AnalysisRecord) {
	if s.rc == nil || record == nil {
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	_ = s.rc.Set(ctx, cacheKey(record.ContentID), string(raw), cacheTTL)
}
