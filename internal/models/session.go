package models

import "time"

// OwnerSession tracks signed-in JWT sessions so tokens can be revoked
// before they expire.
type OwnerSession struct {
	Base
	OwnerID   string     `json:"owner_id"   gorm:"index;not null"`
	IP        string     `json:"ip"`
	UA        string     `json:"ua"         gorm:"type:text"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	RevokedAt *time.Time `json:"revoked_at" gorm:"index"`
}

func (OwnerSession) TableName() string { return "owner_sessions" }
