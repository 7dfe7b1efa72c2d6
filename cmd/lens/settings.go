package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/pkg/envelope"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or update the shared analysis settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current settings record",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Patch one or more settings fields",
	Long:  "Known keys: autoAnalyze (bool), maxComments (int), showWordCloud (bool), apiUrl (URL). Unnamed fields keep their stored values.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSettingsSet,
}

func init() {
	settingsGetCmd.Flags().StringP("output", "o", "", "Output format (json)")
	settingsSetCmd.Flags().StringP("output", "o", "", "Output format (json)")
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, _ []string) error {
	raw, err := postBridge(cmd.Context(), cmd, envelope.MessageGetSettings, nil)
	if err != nil {
		return err
	}
	return outputSettings(cmd, raw)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	patch, err := parseSettingsArgs(args)
	if err != nil {
		return err
	}
	raw, err := postBridge(cmd.Context(), cmd, envelope.MessageUpdateSettings, patch)
	if err != nil {
		return err
	}
	return outputSettings(cmd, raw)
}

// parseSettingsArgs turns key=value pairs into a typed partial update.
// Typing happens client-side so "maxComments=abc" fails before the wire.
func parseSettingsArgs(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "autoAnalyze", "showWordCloud":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%s expects true or false, got %q", key, value)
			}
			patch[key] = b
		case "maxComments":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("maxComments expects a number, got %q", value)
			}
			patch[key] = n
		case "apiUrl":
			patch[key] = value
		default:
			return nil, fmt.Errorf("unknown setting %q (known: autoAnalyze, maxComments, showWordCloud, apiUrl)", key)
		}
	}
	return patch, nil
}

func outputSettings(cmd *cobra.Command, raw json.RawMessage) error {
	var current config.Settings
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("unexpected settings payload: %w", err)
	}

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		return printJSON(current)
	}

	data := pterm.TableData{
		{"autoAnalyze", strconv.FormatBool(current.AutoAnalyze)},
		{"maxComments", strconv.Itoa(current.MaxComments)},
		{"showWordCloud", strconv.FormatBool(current.ShowWordCloud)},
		{"apiUrl", current.APIURL},
	}
	return pterm.DefaultTable.WithData(data).Render()
}
