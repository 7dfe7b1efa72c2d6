package notify

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/modules/gateway/webhook"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, dbMock
}

// expectHookLookup is the query Dispatch runs to find enabled hooks. An
// empty result keeps the test synchronous, so counting these queries
// counts alerts.
func expectHookLookup(dbMock sqlmock.Sqlmock) {
	dbMock.ExpectQuery("SELECT(.+)FROM `webhooks`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload_url", "events", "enabled"}))
}

func TestObserveHealthAlertsOnTransitionsOnly(t *testing.T) {
	db, dbMock := newMockDB(t)
	svc := New(nil, &config.AppConfig{}, webhook.NewService(db), nil)

	endpoint := "http://localhost:8000"

	// Healthy from the start: silence.
	assert.False(t, svc.ObserveHealth(endpoint, true, ""))
	assert.False(t, svc.ObserveHealth(endpoint, true, ""))

	// Flip down: one alert.
	expectHookLookup(dbMock)
	assert.True(t, svc.ObserveHealth(endpoint, false, "connection refused"))

	// Still down: silence.
	assert.False(t, svc.ObserveHealth(endpoint, false, "connection refused"))

	// Recovery: one alert.
	expectHookLookup(dbMock)
	assert.True(t, svc.ObserveHealth(endpoint, true, ""))

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestObserveHealthFirstResultUnhealthyAlerts(t *testing.T) {
	db, dbMock := newMockDB(t)
	svc := New(nil, &config.AppConfig{}, webhook.NewService(db), nil)

	expectHookLookup(dbMock)
	svc.ObserveHealth("http://localhost:8000", false, "dial tcp: connection refused")

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestOnBackupCompletedDispatchesWebhook(t *testing.T) {
	db, dbMock := newMockDB(t)
	svc := New(nil, &config.AppConfig{}, webhook.NewService(db), nil)

	expectHookLookup(dbMock)
	svc.OnBackupCompleted("tubelens-backup-20260823.zip", 4096, false, errors.New("zip write failed"))

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestNilChannelsAreSafe(t *testing.T) {
	svc := New(nil, nil, nil, nil)

	assert.NotPanics(t, func() {
		svc.OnAnalysisCompleted(nil)
		svc.OnSettingsUpdated(config.DefaultSettings())
		svc.ObserveHealth("http://localhost:8000", false, "down")
		svc.OnBackupCompleted("backup.zip", 10, true, nil)
	})
}

func TestAlertAddressPrefersConfigured(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Notify.Mail.Enable = true
	cfg.Notify.AlertTo = " ops@example.com "

	svc := New(nil, cfg, nil, nil)
	assert.Equal(t, "ops@example.com", svc.alertAddress())
}

func TestAlertAddressFallsBackToOwner(t *testing.T) {
	db, dbMock := newMockDB(t)
	cfg := &config.AppConfig{}
	cfg.Notify.Mail.Enable = true

	dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
		WillReturnRows(sqlmock.NewRows([]string{"mail"}).AddRow("root@example.com"))

	svc := New(db, cfg, nil, nil)
	assert.Equal(t, "root@example.com", svc.alertAddress())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestAlertAddressEmptyWhenMailDisabled(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Notify.AlertTo = "ops@example.com"

	svc := New(nil, cfg, nil, nil)
	assert.Empty(t, svc.alertAddress())
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "2.0 MB", humanSize(2<<20))
}
