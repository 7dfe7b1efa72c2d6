package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultMaxComments caps how many comments one analysis request may carry.
	DefaultMaxComments = 500
	// DefaultAPIURL points at a locally run analysis service.
	DefaultAPIURL = "http://localhost:8000"
)

// Settings is the singleton runtime record shared by page clients and the
// agent: created with defaults on first read, shallow-merged on update,
// never deleted. Consumers receive a transient copy and must re-read it
// per call instead of caching it.
type Settings struct {
	AutoAnalyze   bool   `json:"autoAnalyze"`
	MaxComments   int    `json:"maxComments"`
	ShowWordCloud bool   `json:"showWordCloud"`
	APIURL        string `json:"apiUrl"`
}

// DefaultSettings returns the first-run record.
func DefaultSettings() Settings {
	return Settings{
		AutoAnalyze:   true,
		MaxComments:   DefaultMaxComments,
		ShowWordCloud: true,
		APIURL:        DefaultAPIURL,
	}
}

// Validate rejects records that would break the analysis client.
func (s Settings) Validate() error {
	if s.MaxComments < 1 {
		return fmt.Errorf("maxComments must be positive, got %d", s.MaxComments)
	}
	raw := strings.TrimSpace(s.APIURL)
	if raw == "" {
		return fmt.Errorf("apiUrl must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("apiUrl %q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("apiUrl %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("apiUrl %q is missing a host", raw)
	}
	return nil
}

// AnalyzeEndpoint is {apiUrl}/analyze with trailing slashes collapsed.
func (s Settings) AnalyzeEndpoint() string {
	return s.endpoint("/analyze")
}

// HealthEndpoint is {apiUrl}/health with trailing slashes collapsed.
func (s Settings) HealthEndpoint() string {
	return s.endpoint("/health")
}

func (s Settings) endpoint(path string) string {
	base := strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	if base == "" {
		base = DefaultAPIURL
	}
	return base + path
}

// UnmarshalJSON merges only the keys present in data onto the receiver,
// leaving absent fields untouched. Snake_case aliases are accepted so
// records exported by older installations restore cleanly.
func (s *Settings) UnmarshalJSON(data []byte) error {
	next := *s
	var raw struct {
		AutoAnalyze        *bool   `json:"autoAnalyze"`
		AutoAnalyzeSnake   *bool   `json:"auto_analyze"`
		MaxComments        *int    `json:"maxComments"`
		MaxCommentsSnake   *int    `json:"max_comments"`
		ShowWordCloud      *bool   `json:"showWordCloud"`
		ShowWordCloudSnake *bool   `json:"show_word_cloud"`
		APIURL             *string `json:"apiUrl"`
		APIURLSnake        *string `json:"api_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.AutoAnalyze != nil {
		next.AutoAnalyze = *raw.AutoAnalyze
	} else if raw.AutoAnalyzeSnake != nil {
		next.AutoAnalyze = *raw.AutoAnalyzeSnake
	}
	if raw.MaxComments != nil {
		next.MaxComments = *raw.MaxComments
	} else if raw.MaxCommentsSnake != nil {
		next.MaxComments = *raw.MaxCommentsSnake
	}
	if raw.ShowWordCloud != nil {
		next.ShowWordCloud = *raw.ShowWordCloud
	} else if raw.ShowWordCloudSnake != nil {
		next.ShowWordCloud = *raw.ShowWordCloudSnake
	}
	if raw.APIURL != nil {
		next.APIURL = strings.TrimSpace(*raw.APIURL)
	} else if raw.APIURLSnake != nil {
		next.APIURL = strings.TrimSpace(*raw.APIURLSnake)
	}

	*s = next
	return nil
}
