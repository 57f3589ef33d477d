// Package config handles configuration loading and management for Lincoln.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Lincoln.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// BedrockConfig routes model calls through AWS Bedrock instead of the Anthropic API.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// StorageConfig selects and locates the queue store.
type StorageConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend     string `mapstructure:"backend"`
	DataDir     string `mapstructure:"data_dir"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// DispatchConfig holds dispatcher tuning.
type DispatchConfig struct {
	WorkersPerKind  int           `mapstructure:"workers_per_kind"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	PollMin         time.Duration `mapstructure:"poll_min"`
	PollMax         time.Duration `mapstructure:"poll_max"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
}

// ServerConfig holds status API settings.
type ServerConfig struct {
	// Addr is the listen address for serve.
	Addr string `mapstructure:"addr"`
	// URL is where CLI commands reach a running server.
	URL          string        `mapstructure:"url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds process and per-agent logging settings.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
	// AgentDir holds one log file per agent kind. Relative paths are under storage.data_dir.
	AgentDir string `mapstructure:"agent_dir"`
	// OutputDir, when set, receives one JSON document per successful task.
	OutputDir string `mapstructure:"output_dir"`
}

// NotifyConfig holds completion notification settings.
type NotifyConfig struct {
	Email EmailConfig `mapstructure:"email"`
}

// EmailConfig configures the SendGrid completion notifier.
type EmailConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKey  string   `mapstructure:"api_key"`
	From    string   `mapstructure:"from"`
	To      []string `mapstructure:"to"`
	// Host is the SendGrid API host.
	Host string `mapstructure:"host"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, LINCOLN_<SECTION>_<KEY>)
// 2. Project config (.lincoln.yaml in current directory or parent)
// 3. User config (~/.config/lincoln/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

// Lookup returns the effective value of a dotted config key.
func Lookup(key string) (any, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	key = strings.ToLower(key)
	if !isKnownKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v.Get(key), nil
}

// SetUserValue writes a single key to the user config file, keeping other keys.
func SetUserValue(key, value string) error {
	key = strings.ToLower(key)
	if !isKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	if strings.HasSuffix(key, "output_paths") || key == "notify.email.to" {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Save writes the given configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("bedrock.profile", cfg.Bedrock.Profile)
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.Set("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.Set("dispatch.workers_per_kind", cfg.Dispatch.WorkersPerKind)
	v.Set("dispatch.timeout", cfg.Dispatch.Timeout.String())
	v.Set("dispatch.max_retries", cfg.Dispatch.MaxRetries)
	v.Set("dispatch.backoff_base", cfg.Dispatch.BackoffBase.String())
	v.Set("dispatch.backoff_max", cfg.Dispatch.BackoffMax.String())
	v.Set("dispatch.poll_min", cfg.Dispatch.PollMin.String())
	v.Set("dispatch.poll_max", cfg.Dispatch.PollMax.String())
	v.Set("dispatch.monitor_interval", cfg.Dispatch.MonitorInterval.String())
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.read_timeout", cfg.Server.ReadTimeout.String())
	v.Set("server.write_timeout", cfg.Server.WriteTimeout.String())
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.encoding", cfg.Logging.Encoding)
	v.Set("logging.output_paths", cfg.Logging.OutputPaths)
	v.Set("logging.error_output_paths", cfg.Logging.ErrorOutputPaths)
	v.Set("logging.agent_dir", cfg.Logging.AgentDir)
	v.Set("logging.output_dir", cfg.Logging.OutputDir)
	v.Set("notify.email.enabled", cfg.Notify.Email.Enabled)
	v.Set("notify.email.api_key", cfg.Notify.Email.APIKey)
	v.Set("notify.email.from", cfg.Notify.Email.From)
	v.Set("notify.email.to", cfg.Notify.Email.To)
	v.Set("notify.email.host", cfg.Notify.Email.Host)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// Validate reports the first setting that would prevent the service from starting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q (want sqlite or postgres)", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Dispatch.WorkersPerKind < 1 {
		return fmt.Errorf("%w: dispatch.workers_per_kind must be at least 1", ErrInvalidConfig)
	}
	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("%w: dispatch.timeout must be positive", ErrInvalidConfig)
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("%w: dispatch.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Dispatch.BackoffBase <= 0 || c.Dispatch.BackoffMax < c.Dispatch.BackoffBase {
		return fmt.Errorf("%w: dispatch.backoff_base must be positive and not above backoff_max", ErrInvalidConfig)
	}
	if c.Dispatch.PollMin <= 0 || c.Dispatch.PollMax < c.Dispatch.PollMin {
		return fmt.Errorf("%w: dispatch.poll_min must be positive and not above poll_max", ErrInvalidConfig)
	}
	if c.Notify.Email.Enabled && (c.Notify.Email.APIKey == "" || c.Notify.Email.From == "" || len(c.Notify.Email.To) == 0) {
		return fmt.Errorf("%w: notify.email needs api_key, from and to when enabled", ErrInvalidConfig)
	}
	return nil
}

// ResolvedSQLitePath returns the configured database path, defaulting into the data dir.
func (s StorageConfig) ResolvedSQLitePath() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(s.DataDir, "lincoln.db")
}

// SignalDir returns the directory watched for pause and stop files.
func (s StorageConfig) SignalDir() string {
	return filepath.Join(s.DataDir, "signals")
}

// ResolveAgentDir returns the per-agent log directory.
func (c *Config) ResolveAgentDir() string {
	if filepath.IsAbs(c.Logging.AgentDir) {
		return c.Logging.AgentDir
	}
	return filepath.Join(c.Storage.DataDir, c.Logging.AgentDir)
}

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var (
	// ErrUnknownKey is returned for config keys Lincoln does not define.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Keys returns every dotted key Lincoln understands.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return v, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LINCOLN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "LINCOLN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("storage.postgres_dsn", "LINCOLN_STORAGE_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("notify.email.api_key", "LINCOLN_NOTIFY_EMAIL_API_KEY", "SENDGRID_API_KEY")
	v.BindEnv("notify.email.from", "LINCOLN_NOTIFY_EMAIL_FROM", "SENDGRID_FROM_EMAIL")
	v.BindEnv("notify.email.to", "LINCOLN_NOTIFY_EMAIL_TO", "SENDGRID_TO_EMAIL")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Storage.PostgresDSN = expandEnv(cfg.Storage.PostgresDSN)
	cfg.Notify.Email.APIKey = expandEnv(cfg.Notify.Email.APIKey)
	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)

	v.SetDefault("bedrock.enabled", d.Bedrock.Enabled)
	v.SetDefault("bedrock.region", d.Bedrock.Region)
	v.SetDefault("bedrock.profile", d.Bedrock.Profile)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("dispatch.workers_per_kind", d.Dispatch.WorkersPerKind)
	v.SetDefault("dispatch.timeout", d.Dispatch.Timeout.String())
	v.SetDefault("dispatch.max_retries", d.Dispatch.MaxRetries)
	v.SetDefault("dispatch.backoff_base", d.Dispatch.BackoffBase.String())
	v.SetDefault("dispatch.backoff_max", d.Dispatch.BackoffMax.String())
	v.SetDefault("dispatch.poll_min", d.Dispatch.PollMin.String())
	v.SetDefault("dispatch.poll_max", d.Dispatch.PollMax.String())
	v.SetDefault("dispatch.monitor_interval", d.Dispatch.MonitorInterval.String())

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout.String())

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)
	v.SetDefault("logging.error_output_paths", d.Logging.ErrorOutputPaths)
	v.SetDefault("logging.agent_dir", d.Logging.AgentDir)
	v.SetDefault("logging.output_dir", d.Logging.OutputDir)

	v.SetDefault("notify.email.enabled", d.Notify.Email.Enabled)
	v.SetDefault("notify.email.api_key", d.Notify.Email.APIKey)
	v.SetDefault("notify.email.from", d.Notify.Email.From)
	v.SetDefault("notify.email.to", d.Notify.Email.To)
	v.SetDefault("notify.email.host", d.Notify.Email.Host)

	v.SetDefault("tui.refresh_rate", d.TUI.RefreshRate.String())
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Bedrock: BedrockConfig{
			Region: "us-west-2",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: defaultDataDir(),
		},
		Dispatch: DispatchConfig{
			WorkersPerKind:  1,
			Timeout:         5 * time.Minute,
			MaxRetries:      3,
			BackoffBase:     2 * time.Second,
			BackoffMax:      time.Minute,
			PollMin:         250 * time.Millisecond,
			PollMax:         5 * time.Second,
			MonitorInterval: 2 * time.Minute,
		},
		Server: ServerConfig{
			Addr:         "0.0.0.0:5000",
			URL:          "http://127.0.0.1:5000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
			AgentDir:         "logs",
		},
		Notify: NotifyConfig{
			Email: EmailConfig{
				Host: "https://api.sendgrid.com",
			},
		},
		TUI: TUIConfig{
			RefreshRate: time.Second,
		},
	}
}

func isKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// getUserConfigDir returns the XDG config directory for Lincoln.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lincoln")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "lincoln")
	}
	return filepath.Join(home, ".config", "lincoln")
}

// defaultDataDir returns the XDG data directory for Lincoln.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "lincoln")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".local", "share", "lincoln")
}

// findProjectConfig searches for .lincoln.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".lincoln.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
