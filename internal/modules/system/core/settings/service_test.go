package settings

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tubelens/core/internal/config"
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

func optionRow(value string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "value"}).AddRow(1, "settings", value)
}

func expectUpsert(dbMock sqlmock.Sqlmock) {
	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO `options`").WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectCommit()
}

func TestGetPersistsDefaultsWhenMissing(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "value"}))
	expectUpsert(dbMock)

	svc := NewService(db)
	got, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), got)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetReadsStoredRecordAndCaches(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").
		WillReturnRows(optionRow(`{"autoAnalyze":false,"maxComments":250,"showWordCloud":false,"apiUrl":"http://svc:8000"}`))

	svc := NewService(db)
	got, err := svc.Get()
	require.NoError(t, err)

	assert.False(t, got.AutoAnalyze)
	assert.Equal(t, 250, got.MaxComments)
	assert.False(t, got.ShowWordCloud)
	assert.Equal(t, "http://svc:8000", got.APIURL)

	// Second read must come from cache, no further SQL.
	again, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSequentialPatchesMerge(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").WillReturnRows(optionRow(`{}`))
	expectUpsert(dbMock)
	expectUpsert(dbMock)

	svc := NewService(db)

	first, err := svc.Patch(map[string]json.RawMessage{"autoAnalyze": json.RawMessage("false")})
	require.NoError(t, err)
	assert.False(t, first.AutoAnalyze)
	assert.Equal(t, config.DefaultMaxComments, first.MaxComments)
	assert.True(t, first.ShowWordCloud)

	second, err := svc.Patch(map[string]json.RawMessage{"maxComments": json.RawMessage("200")})
	require.NoError(t, err)
	assert.False(t, second.AutoAnalyze)
	assert.Equal(t, 200, second.MaxComments)
	assert.True(t, second.ShowWordCloud)
	assert.Equal(t, config.DefaultAPIURL, second.APIURL)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPatchRejectsInvalidWholesale(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").WillReturnRows(optionRow(`{}`))

	svc := NewService(db)

	_, err := svc.Patch(map[string]json.RawMessage{"maxComments": json.RawMessage("0")})
	require.ErrorIs(t, err, ErrInvalidPatch)

	_, err = svc.Patch(map[string]json.RawMessage{"apiUrl": json.RawMessage(`"ftp://nope"`)})
	require.ErrorIs(t, err, ErrInvalidPatch)

	// The record stayed untouched.
	got, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), got)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPatchIgnoresUnknownKeys(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").WillReturnRows(optionRow(`{}`))
	expectUpsert(dbMock)

	svc := NewService(db)
	got, err := svc.Patch(map[string]json.RawMessage{
		"bogus":       json.RawMessage(`"x"`),
		"maxComments": json.RawMessage("50"),
	})

	require.NoError(t, err)
	assert.Equal(t, 50, got.MaxComments)
	assert.True(t, got.AutoAnalyze)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

type eventsMock struct{ mock.Mock }

func (m *eventsMock) SettingsUpdated(s config.Settings) { m.Called(s) }

func TestPatchNotifiesEvents(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `options`").WillReturnRows(optionRow(`{}`))
	expectUpsert(dbMock)

	ev := &eventsMock{}
	ev.On("SettingsUpdated", mock.AnythingOfType("config.Settings")).Once()

	svc := NewService(db)
	svc.SetEvents(ev)

	_, err := svc.Patch(map[string]json.RawMessage{"autoAnalyze": json.RawMessage("false")})
	require.NoError(t, err)
	ev.AssertExpectations(t)
}
