package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tubelens/core/internal/pkg/envelope"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the server and its backing stores",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var agentHealthCmd = &cobra.Command{
	Use:   "agent-health",
	Short: "Probe the analysis agent through the server",
	Args:  cobra.NoArgs,
	RunE:  runAgentHealth,
}

func init() {
	healthCmd.Flags().StringP("output", "o", "", "Output format (json)")
	agentHealthCmd.Flags().StringP("output", "o", "", "Output format (json)")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(agentHealthCmd)
}

type healthPayload struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database bool   `json:"database"`
	Redis    *bool  `json:"redis,omitempty"`
	Uptime   int64  `json:"uptime"`
}

// runHealth hits the public liveness endpoint. A degraded server answers
// 503 with the same body, so the status code is part of the result, not
// a transport failure.
func runHealth(cmd *cobra.Command, _ []string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, serverBase(cmd)+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := httpClient(cmd).Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", serverBase(cmd), err)
	}
	defer resp.Body.Close()

	var payload healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("unexpected response from server: %w", err)
	}

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		return printJSON(payload)
	}

	pterm.Println()
	name := "tubelens-core"
	if payload.Version != "" {
		name += " " + payload.Version
	}
	pterm.Printfln("  %s %s", statusDot(payload.Status == "ok"), pterm.Bold.Sprint(name))
	pterm.Printfln("    %s database", statusDot(payload.Database))
	if payload.Redis != nil {
		pterm.Printfln("    %s redis", statusDot(*payload.Redis))
	}
	pterm.Printfln("    up %s", (time.Duration(payload.Uptime) * time.Second).String())
	pterm.Println()

	if payload.Status != "ok" {
		return fmt.Errorf("server is degraded")
	}
	return nil
}

func runAgentHealth(cmd *cobra.Command, _ []string) error {
	raw, err := postBridge(cmd.Context(), cmd, envelope.MessageHealthCheck, nil)
	if err != nil {
		return err
	}

	var status struct {
		Status  string `json:"status"`
		Service string `json:"service,omitempty"`
		Message string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("unexpected health payload: %w", err)
	}

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		return printJSON(status)
	}

	name := status.Service
	if name == "" {
		name = "analysis agent"
	}
	pterm.Println()
	pterm.Printfln("  %s %s  %s", statusDot(true), pterm.Bold.Sprint(name), status.Status)
	if status.Message != "" {
		pterm.Printfln("    %s", status.Message)
	}
	pterm.Println()
	return nil
}

func statusDot(ok bool) string {
	if ok {
		return pterm.FgGreen.Sprint("●")
	}
	return pterm.FgRed.Sprint("●")
}
