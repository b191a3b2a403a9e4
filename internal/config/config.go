// Package config manages application configuration from various sources.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/credentials"
	"github.com/marcozac/go-jsonc"
	"github.com/spf13/viper"
)

// Data defines storage configuration.
type Data struct {
	Directory string `json:"directory,omitempty"`
}

// Upstream defines how the 1C:Naparnik service is reached.
type Upstream struct {
	BaseURL    string        `json:"baseURL,omitempty"`
	Token      string        `json:"token,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" mapstructure:"-"`
	UILanguage string        `json:"uiLanguage,omitempty"`
}

// Server defines the HTTP transport.
type Server struct {
	Addr              string        `json:"addr,omitempty"`
	HeartbeatInterval time.Duration `json:"heartbeatInterval,omitempty"`
}

// Session controls the shared upstream conversation.
type Session struct {
	Persist bool `json:"persist,omitempty"`
}

// Config is the main configuration structure for the application.
type Config struct {
	Data       Data     `json:"data"`
	WorkingDir string   `json:"wd,omitempty"`
	Debug      bool     `json:"debug,omitempty"`
	Upstream   Upstream `json:"upstream"`
	Server     Server   `json:"server"`
	Session    Session  `json:"session"`
}

// Application constants
const (
	defaultDataDirectory     = ".naparnik-mcp"
	defaultLogLevel          = "info"
	defaultBaseURL           = "https://code.1c.ai"
	defaultTimeout           = 30 * time.Second
	defaultUILanguage        = "russian"
	defaultServerAddr        = ":8080"
	defaultHeartbeatInterval = 30 * time.Second
	appName                  = "naparnik-mcp"
)

// Global configuration instance
var cfg *Config

// Load initializes the configuration from environment variables and config files.
// If debug is true, debug mode is enabled and lvl, when given, is set to debug.
func Load(workingDir string, debug bool, lvl *slog.LevelVar) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{
		WorkingDir: workingDir,
	}

	configureViper()
	setDefaults(debug)

	// Read global config
	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	if err := mergeLocalConfig(workingDir); err != nil {
		return cfg, err
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	timeout, err := parseTimeout(viper.GetString("upstream.timeout"))
	if err != nil {
		return cfg, fmt.Errorf("invalid upstream.timeout: %w", err)
	}
	cfg.Upstream.Timeout = timeout

	if cfg.Upstream.Token == "" {
		cfg.Upstream.Token = tokenFromKeyring()
	}

	if lvl != nil {
		defaultLevel := slog.LevelInfo
		if cfg.Debug {
			defaultLevel = slog.LevelDebug
		}
		lvl.Set(defaultLevel)
	}

	if err := Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables.
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(appName, "-", "_")))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The ONEC_AI_* names are accepted for existing deployments.
	viper.BindEnv("upstream.token", "NAPARNIK_MCP_UPSTREAM_TOKEN", "ONEC_AI_TOKEN")
	viper.BindEnv("upstream.baseURL", "NAPARNIK_MCP_UPSTREAM_BASEURL", "ONEC_AI_BASE_URL")
	viper.BindEnv("upstream.timeout", "NAPARNIK_MCP_UPSTREAM_TIMEOUT", "ONEC_AI_TIMEOUT")
}

// setDefaults configures default values for configuration options.
func setDefaults(debug bool) {
	viper.SetDefault("data.directory", defaultDataDirectory)
	viper.SetDefault("upstream.baseURL", defaultBaseURL)
	viper.SetDefault("upstream.timeout", defaultTimeout.String())
	viper.SetDefault("upstream.uiLanguage", defaultUILanguage)
	viper.SetDefault("server.addr", defaultServerAddr)
	viper.SetDefault("server.heartbeatInterval", defaultHeartbeatInterval)
	viper.SetDefault("session.persist", false)

	if debug {
		viper.SetDefault("debug", true)
		viper.Set("log.level", "debug")
	} else {
		viper.SetDefault("debug", false)
		viper.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig handles the result of reading a configuration file.
func readConfig(err error) error {
	if err == nil {
		return nil
	}

	// It's okay if the config file doesn't exist
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return fmt.Errorf("failed to read config: %w", err)
}

// mergeLocalConfig merges .naparnik-mcp.json from the working directory, then
// .naparnik-mcp.jsonc, which may carry comments.
func mergeLocalConfig(workingDir string) error {
	local := viper.New()
	local.SetConfigName(fmt.Sprintf(".%s", appName))
	local.SetConfigType("json")
	local.AddConfigPath(workingDir)

	if err := local.ReadInConfig(); err == nil {
		if err := viper.MergeConfigMap(local.AllSettings()); err != nil {
			return fmt.Errorf("failed to merge local config: %w", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(workingDir, fmt.Sprintf(".%s.jsonc", appName)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read local config: %w", err)
	}

	var settings map[string]any
	if err := jsonc.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse local config: %w", err)
	}
	if err := viper.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge local config: %w", err)
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultTimeout, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

func tokenFromKeyring() string {
	token, err := credentials.GetToken()
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			slog.Warn("Failed to read token from keyring", "error", err)
		}
		return ""
	}
	return token
}

// Validate checks if the configuration is valid.
func Validate() error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.baseURL must not be empty")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", cfg.Upstream.Timeout)
	}
	return nil
}

// Get returns the current configuration.
// It's safe to call this function multiple times.
func Get() *Config {
	return cfg
}

// WorkingDirectory returns the current working directory from the configuration.
func WorkingDirectory() string {
	if cfg == nil {
		panic("config not loaded")
	}
	return cfg.WorkingDir
}

// DataDir resolves the data directory against the working directory.
func (c *Config) DataDir() string {
	if filepath.IsAbs(c.Data.Directory) {
		return c.Data.Directory
	}
	return filepath.Join(c.WorkingDir, c.Data.Directory)
}

// DataDirectory returns the data directory of the loaded configuration.
func DataDirectory() string {
	if cfg == nil {
		panic("config not loaded")
	}
	return cfg.DataDir()
}
