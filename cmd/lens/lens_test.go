package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubelens/core/internal/pkg/envelope"
)

func newTestCmd(server string) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("server", server, "")
	cmd.Flags().String("token", "", "")
	cmd.Flags().Duration("timeout", 5*time.Second, "")
	cmd.SetContext(context.Background())
	return cmd
}

func TestDeriveContentID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", deriveContentID("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.Equal(t, "abc123", deriveContentID("https://example.com/videos/abc123"))
	assert.Equal(t, "abc123", deriveContentID("https://example.com/videos/abc123/"))
	assert.Equal(t, "example.com", deriveContentID("https://example.com/"))
	assert.Equal(t, "saved-page", deriveContentID("/tmp/saved-page.html"))
	assert.Equal(t, "", deriveContentID("-"))
}

func TestParseSettingsArgs(t *testing.T) {
	patch, err := parseSettingsArgs([]string{"autoAnalyze=false", "maxComments=250", "apiUrl=http://10.0.0.5:8000"})
	require.NoError(t, err)
	assert.Equal(t, false, patch["autoAnalyze"])
	assert.Equal(t, 250, patch["maxComments"])
	assert.Equal(t, "http://10.0.0.5:8000", patch["apiUrl"])

	_, err = parseSettingsArgs([]string{"maxComments=lots"})
	assert.ErrorContains(t, err, "expects a number")

	_, err = parseSettingsArgs([]string{"showWordCloud=maybe"})
	assert.ErrorContains(t, err, "expects true or false")

	_, err = parseSettingsArgs([]string{"color=blue"})
	assert.ErrorContains(t, err, "unknown setting")

	_, err = parseSettingsArgs([]string{"autoAnalyze"})
	assert.ErrorContains(t, err, "expected key=value")
}

func TestPostBridgeRoundTrip(t *testing.T) {
	var got struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/bridge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"status":"healthy"}}`))
	}))
	defer srv.Close()

	cmd := newTestCmd(srv.URL)
	raw, err := postBridge(cmd.Context(), cmd, envelope.MessageHealthCheck, nil)
	require.NoError(t, err)
	assert.Equal(t, "HEALTH_CHECK", got.Type)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))
}

func TestPostBridgeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"no comments found to analyze"}`))
	}))
	defer srv.Close()

	cmd := newTestCmd(srv.URL)
	_, err := postBridge(cmd.Context(), cmd, envelope.MessageAnalyzeComments, map[string]any{"comments": []string{}})
	assert.ErrorContains(t, err, "no comments found to analyze")
}

func TestServerBaseResolution(t *testing.T) {
	cmd := newTestCmd("http://flagged:9999/")
	assert.Equal(t, "http://flagged:9999", serverBase(cmd))

	cmd = newTestCmd("")
	t.Setenv("TUBELENS_SERVER", "http://from-env:8080")
	assert.Equal(t, "http://from-env:8080", serverBase(cmd))

	t.Setenv("TUBELENS_SERVER", "")
	assert.Equal(t, defaultServer, serverBase(cmd))
}
