package models

import "time"

// OwnerModel is the single operator account of an installation.
type OwnerModel struct {
	Base
	Username      string     `json:"username" gorm:"uniqueIndex;not null"`
	Name          string     `json:"name"`
	Password      string     `json:"-"        gorm:"not null"`
	Mail          string     `json:"mail"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`

	APITokens []APIToken `json:"api_tokens,omitempty" gorm:"foreignKey:OwnerID"`
}

func (OwnerModel) TableName() string { return "owners" }

// APIToken is a static token for programmatic access, e.g. a headless
// page client running on a schedule.
type APIToken struct {
	Base
	OwnerID   string     `json:"-"          gorm:"index;not null"`
	Token     string     `json:"token"      gorm:"uniqueIndex;not null"`
	Name      string     `json:"name"`
	ExpiredAt *time.Time `json:"expired_at"`
}

func (APIToken) TableName() string { return "api_tokens" }
