// Package config provides YAML-based configuration loading for Campo.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Campo configuration, loaded from campo.yaml.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Sync    SyncConfig    `yaml:"sync"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// StorageConfig selects and configures the database backend.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HTTPConfig holds settings for the dashboard/API server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// SyncConfig controls reconciliation runs started by the server.
type SyncConfig struct {
	// Schedule is an optional 5-field cron expression. When set together
	// with SourcePath, the server re-imports on that schedule in addition
	// to manual triggers.
	Schedule        string `yaml:"schedule"`
	SourcePath      string `yaml:"source_path"`
	DebounceMinutes int    `yaml:"debounce_minutes"`
}

// NotifyConfig controls the new-item fan-out and retention cleanup.
type NotifyConfig struct {
	RetentionDays  int           `yaml:"retention_days"`
	BatchThreshold int           `yaml:"batch_threshold"`
	AdminCap       int           `yaml:"admin_cap"`
	Slack          SlackConfig   `yaml:"slack"`
	Discord        DiscordConfig `yaml:"discord"`
}

// SlackConfig enables the optional Slack mirror of admin alerts.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig enables the optional Discord mirror of admin alerts.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists:
// sqlite in the working directory, port 8080.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "campo.db"
	}
	if c.Storage.Host == "" {
		c.Storage.Host = "127.0.0.1"
	}
	if c.Storage.Port == 0 {
		c.Storage.Port = 3306
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "campo"
	}
	if c.Storage.User == "" {
		c.Storage.User = "root"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Notify.RetentionDays == 0 {
		c.Notify.RetentionDays = 7
	}
	if c.Notify.BatchThreshold == 0 {
		c.Notify.BatchThreshold = 5
	}
	if c.Notify.AdminCap == 0 {
		c.Notify.AdminCap = 10
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not supported (sqlite or mysql)", c.Storage.Driver))
	}
	if c.Sync.Schedule != "" && c.Sync.SourcePath == "" {
		errs = append(errs, "sync.schedule requires sync.source_path")
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.bot_token requires notify.slack.channel")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.bot_token requires notify.discord.channel")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
