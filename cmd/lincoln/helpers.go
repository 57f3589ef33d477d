package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/lincoln/internal/client"
	"github.com/ShayCichocki/lincoln/internal/config"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Output formats for read commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newClient returns a client for --server, or server.url from config.
func newClient() (*client.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	u := serverURL
	if u == "" {
		u = cfg.Server.URL
	}
	return client.New(u), cfg, nil
}

// printStructured writes v as indented JSON or YAML. YAML goes through JSON so raw
// payloads and results keep their structure.
func printStructured(w io.Writer, v any, format string) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case formatJSON:
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case formatYAML:
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// readPayload loads a task payload from a JSON or YAML file, or "-" for stdin.
func readPayload(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return parsePayload(data)
}

// parsePayload accepts JSON or YAML and returns compact JSON.
func parsePayload(data []byte) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("payload is neither JSON nor YAML: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert payload: %w", err)
	}
	return raw, nil
}

func colorStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusRunning:
		return color.CyanString(string(s))
	case models.TaskStatusSucceeded:
		return color.GreenString(string(s))
	case models.TaskStatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
