package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/tubelens/core/internal/middleware"
	"github.com/tubelens/core/internal/models"
	sessionpkg "github.com/tubelens/core/internal/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// loginFailureDelay slows repeated credential guesses. Tests zero it.
var loginFailureDelay = 3 * time.Second

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Login verifies the owner credential and issues a JWT bound to a fresh
// session row, so the token can be revoked before it expires.
func (s *Service) Login(username, password, ip, ua string) (string, *models.OwnerModel, error) {
	var o models.OwnerModel
	if err := s.db.Select("id, username, name, mail, password, last_login_time, last_login_ip").
		Where("username = ?", username).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			time.Sleep(loginFailureDelay)
			return "", nil, errOwnerNotFound
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.Password), []byte(password)); err != nil {
		time.Sleep(loginFailureDelay)
		return "", nil, errWrongPassword
	}

	token, _, err := sessionpkg.Issue(s.db, o.ID, ip, ua, sessionpkg.DefaultTTL)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	s.db.Model(&o).Updates(map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	})
	o.LastLoginTime = &now
	o.LastLoginIP = ip
	return token, &o, nil
}

// Register creates the owner account. Only one may exist per installation.
func (s *Service) Register(dto *RegisterDTO) (*models.OwnerModel, error) {
	var count int64
	if err := s.db.Model(&models.OwnerModel{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	if name == "" {
		name = dto.Username
	}
	o := models.OwnerModel{
		Username: dto.Username,
		Password: string(hash),
		Name:     name,
		Mail:     strings.TrimSpace(dto.Mail),
	}
	return &o, s.db.Create(&o).Error
}

func (s *Service) IsRegistered() bool {
	var count int64
	s.db.Model(&models.OwnerModel{}).Count(&count)
	return count > 0
}

func (s *Service) Owner() (*models.OwnerModel, error) {
	var o models.OwnerModel
	if err := s.db.First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *Service) GetByID(id string) (*models.OwnerModel, error) {
	var o models.OwnerModel
	if err := s.db.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *Service) UpdateProfile(id string, dto *UpdateOwnerDTO) (*models.OwnerModel, error) {
	o, err := s.GetByID(id)
	if err != nil || o == nil {
		return o, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		updates["name"] = name
		o.Name = name
	}
	if dto.Mail != nil {
		mail := strings.TrimSpace(*dto.Mail)
		updates["mail"] = mail
		o.Mail = mail
	}
	if len(updates) == 0 {
		return o, nil
	}
	return o, s.db.Model(o).Updates(updates).Error
}

func (s *Service) ChangePassword(id, oldPwd, newPwd string) error {
	var o models.OwnerModel
	if err := s.db.Select("id, password").First(&o, "id = ?", id).Error; err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.Password), []byte(oldPwd)); err != nil {
		return errWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.Model(&o).Update("password", string(hash)).Error
}

// ListTokens returns the owner's unexpired API tokens, newest first.
func (s *Service) ListTokens(ownerID string) ([]models.APIToken, error) {
	var tokens []models.APIToken
	return tokens, s.db.
		Where("owner_id = ? AND (expired_at IS NULL OR expired_at > ?)", ownerID, time.Now()).
		Order("created_at DESC").Find(&tokens).Error
}

func (s *Service) GetToken(ownerID, tokenID string) (*models.APIToken, error) {
	var t models.APIToken
	if err := s.db.
		Where("id = ? AND owner_id = ? AND (expired_at IS NULL OR expired_at > ?)", tokenID, ownerID, time.Now()).
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// VerifyTokenString reports whether a raw token string is a live API token.
func (s *Service) VerifyTokenString(token string) (bool, error) {
	var count int64
	err := s.db.Model(&models.APIToken{}).
		Where("token = ? AND (expired_at IS NULL OR expired_at > ?)", token, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateToken mints a static API token. The prefix is what the auth guard
// keys on to route validation to the api_tokens table instead of JWT parsing.
func (s *Service) CreateToken(ownerID string, dto *CreateTokenDTO) (*models.APIToken, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}

	t := models.APIToken{
		OwnerID:   ownerID,
		Token:     middleware.APITokenPrefix + hex.EncodeToString(b),
		Name:      dto.Name,
		ExpiredAt: firstNonNilTime(dto.Expired, dto.ExpiredAt),
	}
	return &t, s.db.Create(&t).Error
}

func (s *Service) DeleteToken(ownerID, tokenID string) error {
	result := s.db.Where("id = ? AND owner_id = ?", tokenID, ownerID).
		Delete(&models.APIToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errTokenNotFound
	}
	return nil
}
