package bark

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticConfig(key, serverURL string) ConfigFunc {
	return func() (string, string, string) {
		return key, serverURL, "TubeLens"
	}
}

func TestPushPostsToServer(t *testing.T) {
	var got pushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc := New(staticConfig("dev-key", srv.URL))
	require.NoError(t, svc.Push("rate limit", "IP 1.2.3.4"))

	assert.Equal(t, "dev-key", got.DeviceKey)
	assert.Equal(t, "[TubeLens] rate limit", got.Title)
	assert.Equal(t, "IP 1.2.3.4", got.Body)
	assert.Equal(t, "TubeLens", got.Group)
}

func TestPushWithoutKeyIsRejected(t *testing.T) {
	svc := New(staticConfig("", "http://ignored"))
	assert.Error(t, svc.Push("x", "y"))
}

func TestPushUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	svc := New(staticConfig("dev-key", deadURL))
	assert.Error(t, svc.Push("x", "y"))
}

func TestThrottlePushSuppressesRepeats(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc := New(staticConfig("dev-key", srv.URL))

	svc.ThrottlePush("1.2.3.4", "/api/v1/bridge")
	svc.ThrottlePush("1.2.3.4", "/api/v1/bridge")
	svc.ThrottlePush("1.2.3.4", "/api/v1/bridge")
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "same IP+path pushes once per window")

	svc.ThrottlePush("5.6.7.8", "/api/v1/bridge")
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits), "distinct IP gets its own window")
}

func TestThrottlePushNoopWithoutKey(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	t.Cleanup(srv.Close)

	svc := New(staticConfig("", srv.URL))
	svc.ThrottlePush("1.2.3.4", "/x")
	assert.Equal(t, int64(0), atomic.LoadInt64(&hits))
}
