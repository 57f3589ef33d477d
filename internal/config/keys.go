package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// GetAPIKey returns the Anthropic API key from the configuration.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	if key := envAPIKey(); key != "" {
		return key, nil
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// CheckCredentials reports whether the model backend can be reached with the
// current settings. Bedrock relies on the AWS credential chain and is not checked here.
func CheckCredentials(cfg *Config) error {
	if cfg != nil && cfg.Bedrock.Enabled {
		return nil
	}
	_, err := GetAPIKey(cfg)
	return err
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// MaskSecret hides everything but the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// GetAPIKeySource returns where the model credentials come from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg != nil && cfg.Bedrock.Enabled {
		return KeySourceBedrock
	}

	if envAPIKey() != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}

func envAPIKey() string {
	if key := os.Getenv("LINCOLN_ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
