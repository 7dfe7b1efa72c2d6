package auth

import (
	"errors"
	"time"

	"github.com/tubelens/core/internal/models"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
	Mail     string `json:"mail"`
}

type UpdateOwnerDTO struct {
	Name *string `json:"name"`
	Mail *string `json:"mail"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type CreateTokenDTO struct {
	Name      string     `json:"name"       binding:"required"`
	Expired   *time.Time `json:"expired"`
	ExpiredAt *time.Time `json:"expired_at"`
}

type ownerResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	Mail          string     `json:"mail"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

// publicOwnerResponse is the unauthenticated view: no mail, no login trail.
type publicOwnerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type loginResponse struct {
	Token string         `json:"token"`
	Owner *ownerResponse `json:"owner"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	UA        string    `json:"ua"`
	ExpiresAt time.Time `json:"expires_at"`
	Created   time.Time `json:"created"`
	LastSeen  time.Time `json:"last_seen"`
	Current   bool      `json:"current"`
}

type tokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	ExpiredAt *time.Time `json:"expired_at"`
	Created   time.Time  `json:"created"`
}

var (
	errOwnerNotFound     = errors.New("owner not found")
	errWrongPassword     = errors.New("wrong password")
	errAlreadyRegistered = errors.New("owner already registered")
	errTokenNotFound     = errors.New("token not found")
)

func toOwnerResponse(o *models.OwnerModel) *ownerResponse {
	return &ownerResponse{
		ID: o.ID, Username: o.Username, Name: o.Name, Mail: o.Mail,
		LastLoginTime: o.LastLoginTime, LastLoginIP: o.LastLoginIP,
	}
}

func toPublicOwnerResponse(o *models.OwnerModel) *publicOwnerResponse {
	return &publicOwnerResponse{ID: o.ID, Username: o.Username, Name: o.Name}
}

func toTokenResponse(t *models.APIToken) tokenResponse {
	return tokenResponse{
		ID: t.ID, Name: t.Name, Token: t.Token,
		ExpiredAt: t.ExpiredAt, Created: t.CreatedAt,
	}
}

func toSessionResponse(s *models.OwnerSession, currentSID string) sessionResponse {
	return sessionResponse{
		ID: s.ID, IP: s.IP, UA: s.UA,
		ExpiresAt: s.ExpiresAt,
		Created:   s.CreatedAt,
		LastSeen:  s.UpdatedAt,
		Current:   s.ID == currentSID,
	}
}

func firstNonNilTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
