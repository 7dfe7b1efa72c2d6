package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tubelens/core/internal/middleware"
	jwtpkg "github.com/tubelens/core/internal/pkg/jwt"
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

func newAuthRouter(h *Handler, authMW gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group(""), authMW)
	return router
}

// authAs stands in for the auth guard on guarded routes.
func authAs(ownerID, sessionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyOwnerID, ownerID)
		if sessionID != "" {
			c.Set(middleware.ContextKeySID, sessionID)
		}
		c.Next()
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func zeroLoginDelay(t *testing.T) {
	t.Helper()
	prev := loginFailureDelay
	loginFailureDelay = 0
	t.Cleanup(func() { loginFailureDelay = prev })
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesSessionToken(t *testing.T) {
	zeroLoginDelay(t)
	db, dbMock := newMockDB(t)

	dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "name", "mail", "password", "last_login_time", "last_login_ip"}).
			AddRow("owner-1", "op", "Operator", "op@example.com", hashPassword(t, "hunter22"), nil, ""))

	// Session row insert.
	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO `owner_sessions`").WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectCommit()

	// Last-login stamp.
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE `owners`").WillReturnResult(sqlmock.NewResult(1, 1))
	dbMock.ExpectCommit()

	router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
	w := doJSON(t, router, http.MethodPost, "/auth/login", gin.H{"username": "op", "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Token string `json:"token"`
		Owner struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Mail     string `json:"mail"`
		} `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "owner-1", body.Owner.ID)
	assert.Equal(t, "op", body.Owner.Username)

	claims, err := jwtpkg.Parse(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.NotEmpty(t, claims.SessionID)

	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	zeroLoginDelay(t)

	t.Run("unknown owner", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnError(gorm.ErrRecordNotFound)

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/login", gin.H{"username": "ghost", "password": "whatever"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "owner not found")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password"}).
				AddRow("owner-1", "op", hashPassword(t, "hunter22")))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/login", gin.H{"username": "op", "password": "nope"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "wrong password")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestRegisterFirstOwnerOnly(t *testing.T) {
	t.Run("first registration succeeds", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT count(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO `owners`").WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/register",
			gin.H{"username": "op", "password": "hunter22", "mail": "op@example.com"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"username":"op"`)
		// Name falls back to the username when omitted.
		assert.Contains(t, w.Body.String(), `"name":"op"`)
		assert.NotContains(t, w.Body.String(), "password")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("second registration is refused", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT count(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/register",
			gin.H{"username": "second", "password": "hunter22"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "owner already registered")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("short password fails validation", func(t *testing.T) {
		db, _ := newMockDB(t)
		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/register",
			gin.H{"username": "op", "password": "meh"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRegisteredProbe(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectQuery("SELECT count(.+)FROM `owners`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

	router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
	w := doJSON(t, router, http.MethodGet, "/auth/registered", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"registered":false}`, w.Body.String())
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSessionEndpoint(t *testing.T) {
	t.Run("unauthenticated returns null", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodGet, "/auth/session", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("bearer token resolves owner and session", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		token, err := jwtpkg.Sign("owner-1", "sess-1", time.Hour)
		require.NoError(t, err)

		// Session liveness check inside the optional-auth guard.
		dbMock.ExpectQuery("SELECT count(.+)FROM `owner_sessions`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
		// Guard touches the session's last-seen stamp.
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "mail"}).
				AddRow("owner-1", "op", "Operator", "op@example.com"))
		now := time.Now()
		dbMock.ExpectQuery("SELECT(.+)FROM `owner_sessions`").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "owner_id", "ip", "ua", "expires_at", "created_at", "updated_at"}).
				AddRow("sess-1", "owner-1", "127.0.0.1", "lens-cli", now.Add(time.Hour), now, now))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Owner   *ownerResponse  `json:"owner"`
			Session sessionResponse `json:"session"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotNil(t, body.Owner)
		assert.Equal(t, "op", body.Owner.Username)
		assert.Equal(t, "sess-1", body.Session.ID)
		assert.True(t, body.Session.Current)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestLogoutRevokesSession(t *testing.T) {
	db, dbMock := newMockDB(t)
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
	w := doJSON(t, router, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, dbMock.ExpectationsWereMet())

	// API-token callers have no session row to revoke.
	db2, dbMock2 := newMockDB(t)
	router2 := newAuthRouter(NewHandler(NewService(db2)), authAs("owner-1", ""))
	w2 := doJSON(t, router2, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, w2.Code)
	require.NoError(t, dbMock2.ExpectationsWereMet())
}

func TestListSessionsMarksCurrent(t *testing.T) {
	db, dbMock := newMockDB(t)
	now := time.Now()
	dbMock.ExpectQuery("SELECT(.+)FROM `owner_sessions`").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "ip", "ua", "expires_at", "created_at", "updated_at"}).
			AddRow("sess-current", "owner-1", "127.0.0.1", "browser", now.Add(time.Hour), now, now).
			AddRow("sess-other", "owner-1", "10.0.0.9", "lens-cli", now.Add(time.Hour), now, now))

	router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-current"))
	w := doJSON(t, router, http.MethodGet, "/auth/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []sessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.True(t, body.Data[0].Current)
	assert.False(t, body.Data[1].Current)
	assert.Equal(t, "lens-cli", body.Data[1].UA)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestRevokeSessionEndpoints(t *testing.T) {
	t.Run("revoke one", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
		w := doJSON(t, router, http.MethodDelete, "/auth/sessions/sess-2", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("revoke missing", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 0))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
		w := doJSON(t, router, http.MethodDelete, "/auth/sessions/ghost", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("revoke others keeps caller", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 3))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
		w := doJSON(t, router, http.MethodDelete, "/auth/sessions", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestOwnerProfileViews(t *testing.T) {
	t.Run("public view hides contact and login trail", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "mail", "last_login_ip"}).
				AddRow("owner-1", "op", "Operator", "op@example.com", "127.0.0.1"))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		w := doJSON(t, router, http.MethodGet, "/auth/owner", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"username":"op"`)
		assert.NotContains(t, w.Body.String(), "mail")
		assert.NotContains(t, w.Body.String(), "last_login")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("bearer token gets the full record", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		token, err := jwtpkg.Sign("owner-1", "sess-1", time.Hour)
		require.NoError(t, err)

		dbMock.ExpectQuery("SELECT count(.+)FROM `owner_sessions`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "mail"}).
				AddRow("owner-1", "op", "Operator", "op@example.com"))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("", ""))
		req := httptest.NewRequest(http.MethodGet, "/auth/owner", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"mail":"op@example.com"`)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("patch updates name and mail", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "mail"}).
				AddRow("owner-1", "op", "Operator", "op@example.com"))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owners`").WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", ""))
		w := doJSON(t, router, http.MethodPatch, "/auth/owner",
			gin.H{"name": "Lens Operator", "mail": "ops@example.com"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"name":"Lens Operator"`)
		assert.Contains(t, w.Body.String(), `"mail":"ops@example.com"`)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("wrong old password", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).
				AddRow("owner-1", hashPassword(t, "old-secret")))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
		w := doJSON(t, router, http.MethodPatch, "/auth/owner/password",
			gin.H{"old_password": "nope", "new_password": "fresh-secret"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "wrong password")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("success revokes other sessions", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT(.+)FROM `owners`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).
				AddRow("owner-1", hashPassword(t, "old-secret")))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owners`").WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `owner_sessions`").WillReturnResult(sqlmock.NewResult(0, 2))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", "sess-1"))
		w := doJSON(t, router, http.MethodPatch, "/auth/owner/password",
			gin.H{"old_password": "old-secret", "new_password": "fresh-secret"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestTokenLifecycle(t *testing.T) {
	t.Run("create mints a prefixed token", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO `api_tokens`").WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", ""))
		w := doJSON(t, router, http.MethodPost, "/auth/token", gin.H{"name": "ci"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var body tokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ci", body.Name)
		assert.True(t, strings.HasPrefix(body.Token, middleware.APITokenPrefix))
		assert.Len(t, body.Token, len(middleware.APITokenPrefix)+40)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("list wraps tokens in data", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		now := time.Now()
		dbMock.ExpectQuery("SELECT(.+)FROM `api_tokens`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "token", "name", "created_at"}).
				AddRow("tok-1", "owner-1", "tloDEAD", "ci", now))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", ""))
		w := doJSON(t, router, http.MethodGet, "/auth/token", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data"`)
		assert.Contains(t, w.Body.String(), `"token":"tloDEAD"`)
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("verify raw token string", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectQuery("SELECT count(.+)FROM `api_tokens`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", ""))
		w := doJSON(t, router, http.MethodGet, "/auth/token?token=tloDEAD", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", strings.TrimSpace(w.Body.String()))
		require.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("delete missing token", func(t *testing.T) {
		db, dbMock := newMockDB(t)
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE `api_tokens`").WillReturnResult(sqlmock.NewResult(0, 0))
		dbMock.ExpectCommit()

		router := newAuthRouter(NewHandler(NewService(db)), authAs("owner-1", ""))
		w := doJSON(t, router, http.MethodDelete, "/auth/token/ghost", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "token not found")
		require.NoError(t, dbMock.ExpectationsWereMet())
	})
}
