package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	target := "/"
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestFromContextDefaults(t *testing.T) {
	q := FromContext(queryContext(t, ""))
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultSize, q.Size)
}

func TestFromContextParsesValues(t *testing.T) {
	q := FromContext(queryContext(t, "page=3&size=25"))
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 25, q.Size)
}

func TestFromContextClamps(t *testing.T) {
	q := FromContext(queryContext(t, "page=0&size=0"))
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultSize, q.Size)

	q = FromContext(queryContext(t, "page=-4&size=-1"))
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultSize, q.Size)

	q = FromContext(queryContext(t, "size=1000"))
	assert.Equal(t, MaxSize, q.Size)
}

func TestFromContextIgnoresGarbage(t *testing.T) {
	q := FromContext(queryContext(t, "page=abc&size=xyz"))
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultSize, q.Size)
}

func TestPaginateMetadata(t *testing.T) {
	sqlDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	dbMock.ExpectQuery("SELECT count(.+) FROM `things`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(35))
	dbMock.ExpectQuery("SELECT (.+) FROM `things`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	type thing struct{ ID string }
	var rows []thing
	meta, err := Paginate(db.Table("things"), Query{Page: 2, Size: 10}, &rows)
	require.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, int64(35), meta.Total)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 4, meta.TotalPage)
	assert.Equal(t, 10, meta.Size)
	assert.True(t, meta.HasNextPage)
}

func TestPaginateLastPage(t *testing.T) {
	sqlDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	dbMock.ExpectQuery("SELECT count(.+) FROM `things`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(35))
	dbMock.ExpectQuery("SELECT (.+) FROM `things`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("z"))

	type thing struct{ ID string }
	var rows []thing
	meta, err := Paginate(db.Table("things"), Query{Page: 4, Size: 10}, &rows)
	require.NoError(t, err)

	assert.Equal(t, 4, meta.TotalPage)
	assert.False(t, meta.HasNextPage)
}
