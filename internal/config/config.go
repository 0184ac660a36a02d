// Package config loads the runtime configuration: endpoints, file locations,
// logging and tuning knobs. User-editable values (token, interval) live in
// package settings instead.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName    = "prwatch"
	configName = "config"
	configType = "toml"
	envPrefix  = "PRWATCH"
)

// Keys understood in config.toml and as PRWATCH_* environment variables
// (dots become underscores, e.g. PRWATCH_LOG_LEVEL).
const (
	KeyAPIURL              = "api_url"
	KeyDataDir             = "data_dir"
	KeyStateFile           = "state_file"
	KeySettingsFile        = "settings_file"
	KeyBadgeFile           = "badge_file"
	KeyLogFile             = "log.file"
	KeyLogLevel            = "log.level"
	KeyActivityConcurrency = "activity.concurrency"
	KeyInactivityThreshold = "inactivity_threshold"
	KeySearchMaxResults    = "search.max_results"
)

type Config struct {
	APIURL              string
	DataDir             string
	StateFile           string
	SettingsFile        string
	BadgeFile           string
	InactivityThreshold time.Duration
	Log                 LogConfig
	Activity            ActivityConfig
	Search              SearchConfig

	// File is the config file that was read, empty when none was found.
	File string
}

type LogConfig struct {
	File  string
	Level string
}

type ActivityConfig struct {
	Concurrency int
}

type SearchConfig struct {
	MaxResults int
}

// Dir returns the directory holding config.toml and settings.toml.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// Load reads the config file at path, or config.toml in Dir when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}
	setDefaults(v, configDir, dataDir)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	cfg.deriveDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir, dataDir string) {
	v.SetDefault(KeyAPIURL, "https://api.github.com/graphql")
	v.SetDefault(KeyDataDir, dataDir)
	v.SetDefault(KeySettingsFile, filepath.Join(configDir, "settings.toml"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyActivityConcurrency, 8)
	v.SetDefault(KeyInactivityThreshold, "720h")
	v.SetDefault(KeySearchMaxResults, 100)

	// Registered so AutomaticEnv can see them; filled from data_dir afterwards
	v.SetDefault(KeyStateFile, "")
	v.SetDefault(KeyBadgeFile, "")
	v.SetDefault(KeyLogFile, "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		APIURL:              v.GetString(KeyAPIURL),
		DataDir:             v.GetString(KeyDataDir),
		StateFile:           v.GetString(KeyStateFile),
		SettingsFile:        v.GetString(KeySettingsFile),
		BadgeFile:           v.GetString(KeyBadgeFile),
		InactivityThreshold: v.GetDuration(KeyInactivityThreshold),
		Log: LogConfig{
			File:  v.GetString(KeyLogFile),
			Level: strings.ToLower(v.GetString(KeyLogLevel)),
		},
		Activity: ActivityConfig{Concurrency: v.GetInt(KeyActivityConcurrency)},
		Search:   SearchConfig{MaxResults: v.GetInt(KeySearchMaxResults)},
		File:     v.ConfigFileUsed(),
	}
}

func (c *Config) deriveDefaults() {
	if c.StateFile == "" {
		c.StateFile = filepath.Join(c.DataDir, "state.db")
	}
	if c.BadgeFile == "" {
		c.BadgeFile = filepath.Join(c.DataDir, "badge.json")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.DataDir, "logs", "prwatch.log")
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: invalid URL %q", KeyAPIURL, c.APIURL)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s: invalid level %q (debug|info|warn|error)", KeyLogLevel, c.Log.Level)
	}
	if c.Activity.Concurrency < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyActivityConcurrency, c.Activity.Concurrency)
	}
	if c.InactivityThreshold <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyInactivityThreshold, c.InactivityThreshold)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeySearchMaxResults, c.Search.MaxResults)
	}
	return nil
}
