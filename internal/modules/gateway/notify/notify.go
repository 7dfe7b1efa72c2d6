package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/modules/gateway/webhook"
	"github.com/tubelens/core/internal/pkg/bark"
	pkgmail "github.com/tubelens/core/internal/pkg/mail"
)

// Service fans notifications out to the configured channels: webhooks for
// machine consumers, Bark and mail for the operator.
type Service struct {
	db         *gorm.DB
	cfg        *config.AppConfig
	webhookSvc *webhook.Service
	barkSvc    *bark.Service

	mu          sync.Mutex
	lastHealthy *bool // nil until the first probe result arrives
}

// New creates a new notification service.
func New(db *gorm.DB, cfg *config.AppConfig, webhookSvc *webhook.Service, barkSvc *bark.Service) *Service {
	return &Service{
		db:         db,
		cfg:        cfg,
		webhookSvc: webhookSvc,
		barkSvc:    barkSvc,
	}
}

// OnAnalysisCompleted is called after a result has been cached.
// Web clients hear about it through the gateway; this relays it to webhooks.
func (s *Service) OnAnalysisCompleted(record *models.AnalysisRecord) {
	if record == nil {
		return
	}
	if s.webhookSvc != nil {
		s.webhookSvc.Dispatch(webhook.EventAnalysisCompleted, record)
	}
}

// OnSettingsUpdated is called after a settings patch has been persisted.
func (s *Service) OnSettingsUpdated(current config.Settings) {
	if s.webhookSvc != nil {
		s.webhookSvc.Dispatch(webhook.EventSettingsUpdated, current)
	}
}

// ObserveHealth records one probe result and alerts when reachability of
// the analysis service flips. The first result after boot only alerts when
// it is unhealthy, so an operator hears about a service that never came up.
// The return value reports whether this result triggered the flip alerts.
func (s *Service) ObserveHealth(endpoint string, healthy bool, detail string) bool {
	s.mu.Lock()
	prev := s.lastHealthy
	s.lastHealthy = &healthy
	s.mu.Unlock()

	if prev == nil {
		if healthy {
			return false
		}
	} else if *prev == healthy {
		return false
	}

	checkedAt := time.Now()

	if s.webhookSvc != nil {
		s.webhookSvc.Dispatch(webhook.EventHealthChanged, map[string]interface{}{
			"healthy":   healthy,
			"endpoint":  endpoint,
			"detail":    detail,
			"checkedAt": checkedAt.UnixMilli(),
		})
	}

	if s.barkEnabled() {
		title := "analysis service unreachable"
		if healthy {
			title = "analysis service recovered"
		}
		body := detail
		if body == "" {
			body = endpoint
		}
		if len(body) > 100 {
			body = body[:100] + "..."
		}
		_ = s.barkSvc.Push(title, body)
	}

	if to := s.alertAddress(); to != "" {
		sender := pkgmail.New(pkgmail.BuildMailConfig(s.cfg))
		_ = sender.SendServiceAlert(to, pkgmail.ServiceAlertData{
			Recovered: healthy,
			Endpoint:  endpoint,
			Detail:    detail,
			CheckedAt: checkedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return true
}

// OnBackupCompleted is called when a backup run finishes, whatever the
// outcome. Mail carries the full report; Bark only hears about failures.
func (s *Service) OnBackupCompleted(filename string, size int64, uploaded bool, backupErr error) {
	success := backupErr == nil
	detail := ""
	if backupErr != nil {
		detail = backupErr.Error()
	}

	if s.webhookSvc != nil {
		s.webhookSvc.Dispatch(webhook.EventBackupCompleted, map[string]interface{}{
			"success":  success,
			"filename": filename,
			"size":     size,
			"uploaded": uploaded,
			"error":    detail,
		})
	}

	if !success && s.barkEnabled() {
		body := detail
		if len(body) > 100 {
			body = body[:100] + "..."
		}
		_ = s.barkSvc.Push("backup failed", body)
	}

	if to := s.alertAddress(); to != "" {
		sender := pkgmail.New(pkgmail.BuildMailConfig(s.cfg))
		_ = sender.SendBackupReport(to, pkgmail.BackupReportData{
			Success:   success,
			Filename:  filename,
			SizeLabel: humanSize(size),
			Uploaded:  uploaded,
			Detail:    detail,
		})
	}
}

func (s *Service) barkEnabled() bool {
	return s.barkSvc != nil && s.cfg != nil && s.cfg.Notify.Bark.Enable
}

// alertAddress resolves where operator mail goes: the configured address
// first, the owner account's mail as fallback. Empty when mail is disabled.
func (s *Service) alertAddress() string {
	if s.cfg == nil || !s.cfg.Notify.Mail.Enable {
		return ""
	}
	if to := strings.TrimSpace(s.cfg.Notify.AlertTo); to != "" {
		return to
	}
	if s.db == nil {
		return ""
	}
	var owner models.OwnerModel
	if err := s.db.Select("mail").First(&owner).Error; err != nil {
		return ""
	}
	return strings.TrimSpace(owner.Mail)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
