package results

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubelens/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testResult() models.AnalysisResult {
	return models.AnalysisResult{
		Sentiment: models.SentimentSummary{
			PositivePct:  62.5,
			NegativePct:  20,
			NeutralPct:   17.5,
			AverageScore: 0.7,
			Overall:      "POSITIVE",
		},
		Keywords: []models.KeywordCount{},
		Meta: models.ResultMeta{
			ContentID:        "vid-1",
			Title:            "First",
			CommentsReceived: 2,
			CommentsAnalyzed: 2,
		},
	}
}

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

func recordColumns() []string {
	return []string{"id", "created_at", "updated_at", "deleted_at", "content_id", "title", "result", "analyzed_at"}
}

const resultJSON = `{"sentiment":{"positivePct":62.5,"negativePct":20,"neutralPct":17.5,"averageScore":0.7,"overall":"POSITIVE"},"toxicity":{"toxicPct":0,"spamPct":0},"keywords":[],"patterns":{"averageLength":0,"questionPct":0,"exclamationPct":0},"meta":{"contentId":"vid-1","title":"First","commentsReceived":2,"commentsAnalyzed":2}}`

func TestUpsertStoresAndReturnsRow(t *testing.T) {
	db, dbMock := newMockDB(t)
	now := time.Now()

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO `analysis_records`").WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectCommit()
	dbMock.ExpectQuery("SELECT \\* FROM `analysis_records`").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("rec-1", now, now, nil, "vid-1", "First", resultJSON, now))

	svc := NewService(db, nil)
	stored, err := svc.Upsert(context.Background(), "vid-1", "First", testResult())

	require.NoError(t, err)
	assert.Equal(t, "rec-1", stored.ID)
	assert.Equal(t, "vid-1", stored.ContentID)
	assert.Equal(t, 62.5, stored.Result.Sentiment.PositivePct)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetByContentIDMissing(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT \\* FROM `analysis_records`").
		WillReturnRows(sqlmock.NewRows(recordColumns()))

	svc := NewService(db, nil)
	record, source, err := svc.GetByContentID(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, ServedByMySQL, source)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestDeleteMissingReportsNotFound(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectBegin()
	dbMock.ExpectExec("DELETE FROM `analysis_records`").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectCommit()

	svc := NewService(db, nil)
	err := svc.Delete(context.Background(), "nope")

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPurgeStaleCountsRemovals(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectBegin()
	dbMock.ExpectExec("DELETE FROM `analysis_records`").WillReturnResult(sqlmock.NewResult(0, 3))
	dbMock.ExpectCommit()

	svc := NewService(db, nil)
	removed, err := svc.PurgeStale(DefaultRetention)

	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPurgeAllCountsRemovals(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectBegin()
	dbMock.ExpectExec("DELETE FROM `analysis_records`").WillReturnResult(sqlmock.NewResult(0, 7))
	dbMock.ExpectCommit()

	svc := NewService(db, nil)
	removed, err := svc.PurgeAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
