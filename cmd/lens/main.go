package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tubelens/core/internal/pkg/envelope"
)

const defaultServer = "http://localhost:2450"

var rootCmd = &cobra.Command{
	Use:           "lens",
	Short:         "Analyze video comments from the terminal",
	Long:          "lens talks to a running tubelens-core server: extract comments from a watch page, send them for analysis, and render the result.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("server", "s", "", "tubelens-core base URL (default $TUBELENS_SERVER or "+defaultServer+")")
	rootCmd.PersistentFlags().String("token", "", "API token or JWT for authenticated endpoints (default $TUBELENS_TOKEN)")
	rootCmd.PersistentFlags().Duration("timeout", 60*time.Second, "request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serverBase(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("server"); strings.TrimSpace(s) != "" {
		return strings.TrimRight(strings.TrimSpace(s), "/")
	}
	if s := strings.TrimSpace(os.Getenv("TUBELENS_SERVER")); s != "" {
		return strings.TrimRight(s, "/")
	}
	return defaultServer
}

func apiToken(cmd *cobra.Command) string {
	if t, _ := cmd.Flags().GetString("token"); strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return strings.TrimSpace(os.Getenv("TUBELENS_TOKEN"))
}

func httpClient(cmd *cobra.Command) *http.Client {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// bridgeResponse mirrors the server envelope with the payload kept raw so
// each command decodes its own shape.
type bridgeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// postBridge sends one message to the public bridge endpoint and returns
// the response payload. A rejected message comes back as an error carrying
// the server's text.
func postBridge(ctx context.Context, cmd *cobra.Command, msgType envelope.MessageType, data any) (json.RawMessage, error) {
	msg := struct {
		Type envelope.MessageType `json:"type"`
		Data any                  `json:"data,omitempty"`
	}{Type: msgType, Data: data}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	url := serverBase(cmd) + "/api/v1/bridge"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(cmd).Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach %s: %w", serverBase(cmd), err)
	}
	defer resp.Body.Close()

	var br bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("unexpected response from server: %w", err)
	}
	if !br.Success {
		if br.Error == "" {
			return nil, errors.New("request rejected")
		}
		return nil, errors.New(br.Error)
	}
	return br.Data, nil
}

// getJSON fetches an authenticated REST endpoint and decodes into out.
func getJSON(ctx context.Context, cmd *cobra.Command, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverBase(cmd)+path, nil)
	if err != nil {
		return err
	}
	if token := apiToken(cmd); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient(cmd).Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", serverBase(cmd), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
