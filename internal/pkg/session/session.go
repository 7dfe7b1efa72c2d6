package session

import (
	"strings"
	"time"

	"github.com/tubelens/core/internal/models"
	jwtpkg "github.com/tubelens/core/internal/pkg/jwt"
	"gorm.io/gorm"
)

const DefaultTTL = 30 * 24 * time.Hour

// Issue creates a DB session and signs a JWT bound to that session.
func Issue(db *gorm.DB, ownerID, ip, ua string, ttl time.Duration) (string, *models.OwnerSession, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	s := &models.OwnerSession{
		OwnerID:   ownerID,
		IP:        strings.TrimSpace(ip),
		UA:        strings.TrimSpace(ua),
		ExpiresAt: now.Add(ttl),
	}
	if err := db.Create(s).Error; err != nil {
		return "", nil, err
	}

	token, err := jwtpkg.Sign(ownerID, s.ID, ttl)
	if err != nil {
		_ = db.Delete(s).Error
		return "", nil, err
	}
	return token, s, nil
}

func IsActive(db *gorm.DB, ownerID, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		// Legacy token without sid.
		return true, nil
	}

	var count int64
	err := db.Model(&models.OwnerSession{}).
		Where("id = ? AND owner_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, ownerID, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func Touch(db *gorm.DB, ownerID, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	_ = db.Model(&models.OwnerSession{}).
		Where("id = ? AND owner_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, ownerID, time.Now()).
		Update("updated_at", time.Now()).Error
}

func ListActive(db *gorm.DB, ownerID string) ([]models.OwnerSession, error) {
	var sessions []models.OwnerSession
	err := db.Where("owner_id = ? AND revoked_at IS NULL AND expires_at > ?", ownerID, time.Now()).
		Order("updated_at DESC, created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func Revoke(db *gorm.DB, ownerID, sessionID string) error {
	now := time.Now()
	res := db.Model(&models.OwnerSession{}).
		Where("id = ? AND owner_id = ? AND revoked_at IS NULL", sessionID, ownerID).
		Update("revoked_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func RevokeAfter(db *gorm.DB, ownerID, sessionID string, delay time.Duration) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	if delay <= 0 {
		_ = Revoke(db, ownerID, sessionID)
		return
	}
	time.AfterFunc(delay, func() {
		_ = Revoke(db, ownerID, sessionID)
	})
}

func RevokeAllExcept(db *gorm.DB, ownerID, keepSessionID string) error {
	now := time.Now()
	query := db.Model(&models.OwnerSession{}).
		Where("owner_id = ? AND revoked_at IS NULL", ownerID)
	if strings.TrimSpace(keepSessionID) != "" {
		query = query.Where("id <> ?", keepSessionID)
	}
	return query.Update("revoked_at", &now).Error
}
