package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.True(t, s.AutoAnalyze)
	assert.Equal(t, 500, s.MaxComments)
	assert.True(t, s.ShowWordCloud)
	assert.Equal(t, "http://localhost:8000", s.APIURL)
	assert.NoError(t, s.Validate())
}

func TestSettingsPartialMergeKeepsDefaults(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, json.Unmarshal([]byte(`{"autoAnalyze":false}`), &s))
	require.NoError(t, json.Unmarshal([]byte(`{"maxComments":200}`), &s))

	assert.False(t, s.AutoAnalyze)
	assert.Equal(t, 200, s.MaxComments)
	assert.True(t, s.ShowWordCloud)
	assert.Equal(t, "http://localhost:8000", s.APIURL)
}

func TestSettingsMergeIgnoresUnknownKeys(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, json.Unmarshal([]byte(`{"theme":"dark","maxComments":50}`), &s))

	assert.Equal(t, 50, s.MaxComments)
	assert.True(t, s.AutoAnalyze)
}

func TestSettingsSnakeCaseAliases(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, json.Unmarshal(
		[]byte(`{"auto_analyze":false,"max_comments":120,"show_word_cloud":false,"api_url":"https://analyzer.internal"}`),
		&s,
	))

	assert.False(t, s.AutoAnalyze)
	assert.Equal(t, 120, s.MaxComments)
	assert.False(t, s.ShowWordCloud)
	assert.Equal(t, "https://analyzer.internal", s.APIURL)
}

func TestSettingsCamelCaseWinsOverAlias(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, json.Unmarshal([]byte(`{"maxComments":10,"max_comments":999}`), &s))

	assert.Equal(t, 10, s.MaxComments)
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"zero max comments", func(s *Settings) { s.MaxComments = 0 }, true},
		{"negative max comments", func(s *Settings) { s.MaxComments = -5 }, true},
		{"empty api url", func(s *Settings) { s.APIURL = "" }, true},
		{"ftp scheme", func(s *Settings) { s.APIURL = "ftp://example.com" }, true},
		{"missing host", func(s *Settings) { s.APIURL = "http://" }, true},
		{"https ok", func(s *Settings) { s.APIURL = "https://analyzer.example.com" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettingsEndpoints(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "http://localhost:8000/analyze", s.AnalyzeEndpoint())
	assert.Equal(t, "http://localhost:8000/health", s.HealthEndpoint())

	s.APIURL = "https://analyzer.example.com/"
	assert.Equal(t, "https://analyzer.example.com/analyze", s.AnalyzeEndpoint())
	assert.Equal(t, "https://analyzer.example.com/health", s.HealthEndpoint())
}

func TestSettingsMarshalUsesCamelCase(t *testing.T) {
	raw, err := json.Marshal(DefaultSettings())
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"autoAnalyze":true,"maxComments":500,"showWordCloud":true,"apiUrl":"http://localhost:8000"}`,
		string(raw),
	)
}
