// Package config loads application configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Version is the application version, overridden at build time.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Download DownloadConfig `mapstructure:"download"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ToolsConfig holds external tool paths. Empty values mean "resolve from PATH".
type ToolsConfig struct {
	AcquisitionPath string `mapstructure:"acquisition_path"`
	ArchiverPath    string `mapstructure:"archiver_path"`
}

// StorageConfig holds the on-disk layout for saved downloads.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// CacheConfig holds metadata cache tuning.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxItems   int `mapstructure:"max_items"`
}

// DownloadConfig holds resilience tuning passed to the acquisition tool
// on every attempt. These are operator settings, never user input.
type DownloadConfig struct {
	Retries             int    `mapstructure:"retries"`
	FragmentRetries     int    `mapstructure:"fragment_retries"`
	ConcurrentFragments int    `mapstructure:"concurrent_fragments"`
	BufferSize          string `mapstructure:"buffer_size"`
	RateLimit           string `mapstructure:"rate_limit"`
	ForceIPv4           bool   `mapstructure:"force_ipv4"`
	SkipCertCheck       bool   `mapstructure:"skip_cert_check"`
	// AttemptTimeoutSeconds bounds one strategy attempt. Zero disables the
	// supervising deadline and leaves hang protection to the tool's own
	// socket timeouts.
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds"`
}

// HistoryConfig holds the download history database location.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8264,
		},
		Storage: StorageConfig{
			BaseDir: "./downloads",
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
			MaxItems:   200,
		},
		Download: DownloadConfig{
			Retries:             10,
			FragmentRetries:     10,
			ConcurrentFragments: 4,
			BufferSize:          "16K",
			ForceIPv4:           true,
			SkipCertCheck:       true,
		},
		History: HistoryConfig{
			Path: "./data/vidfetch.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vidfetch")
	}

	v.SetEnvPrefix("VIDFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("tools.acquisition_path", "")
	v.SetDefault("tools.archiver_path", "")
	v.SetDefault("storage.base_dir", d.Storage.BaseDir)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.max_items", d.Cache.MaxItems)
	v.SetDefault("download.retries", d.Download.Retries)
	v.SetDefault("download.fragment_retries", d.Download.FragmentRetries)
	v.SetDefault("download.concurrent_fragments", d.Download.ConcurrentFragments)
	v.SetDefault("download.buffer_size", d.Download.BufferSize)
	v.SetDefault("download.rate_limit", d.Download.RateLimit)
	v.SetDefault("download.force_ipv4", d.Download.ForceIPv4)
	v.SetDefault("download.skip_cert_check", d.Download.SkipCertCheck)
	v.SetDefault("download.attempt_timeout_seconds", 0)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", false)
}

// CategoryDir returns the absolute output directory for a storage category.
func (c *Config) CategoryDir(category string) string {
	return filepath.Join(c.Storage.BaseDir, category)
}
