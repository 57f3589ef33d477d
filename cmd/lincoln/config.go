package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Lincoln configuration.

Without arguments, displays every effective configuration value.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config file.

Configuration is stored at ~/.config/lincoln/config.yaml
Project-specific overrides can be placed in .lincoln.yaml
Environment variables LINCOLN_<SECTION>_<KEY> override both.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return displayAllConfig()
		case 1:
			return displayConfigKey(args[0])
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig() error {
	keys := config.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		value, err := config.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", key, formatConfigValue(key, value))
	}

	fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
	return nil
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(key string) error {
	value, err := config.Lookup(key)
	if err != nil {
		return err
	}
	fmt.Println(formatConfigValue(strings.ToLower(key), value))
	return nil
}

// setConfigKey sets a configuration value and checks the result still loads.
func setConfigKey(key, value string) error {
	if err := config.SetUserValue(key, value); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config no longer loads after setting %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s\n", key, formatConfigValue(strings.ToLower(key), value))
	return nil
}

// formatConfigValue masks secrets.
func formatConfigValue(key string, value any) string {
	s := fmt.Sprint(value)
	switch key {
	case "anthropic.api_key":
		if s == "" {
			return "(not set)"
		}
		return config.MaskAPIKey(s)
	case "notify.email.api_key", "storage.postgres_dsn":
		if s == "" {
			return "(not set)"
		}
		return config.MaskSecret(s)
	}
	return s
}
