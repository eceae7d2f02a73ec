// Package config provides YAML-based configuration loading for dutywatch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dutywatch configuration, loaded from config.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Broadcaster BroadcasterConfig `yaml:"broadcaster"`
	Notify      NotifyConfig      `yaml:"notify"`
	QGenda      QGendaConfig      `yaml:"qgenda"`
	Rules       []RuleConfig      `yaml:"rules"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds connection settings for the shift store.
// Driver "sqlite" uses Path; driver "mysql" uses Host/Port/Name.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
}

// BroadcasterConfig tunes the real-time fan-out liveness sweep.
type BroadcasterConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	GracePeriod  time.Duration `yaml:"grace_period"`
}

// NotifyConfig holds chat channels for escalation notifications.
// Empty tokens disable the corresponding adapter.
type NotifyConfig struct {
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel_id"`
}

// QGendaConfig holds settings for the external calendar sync.
type QGendaConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SyncCron     string `yaml:"sync_cron"` // 5-field cron expression; empty disables
}

// RuleConfig seeds a scheduling rule at migration time.
type RuleConfig struct {
	Name         string `yaml:"name"`
	ConflictType string `yaml:"conflict_type"`
	Strategy     string `yaml:"strategy"`
	Priority     int    `yaml:"priority"`
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

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "dutywatch.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "dutywatch"
		}
	}
	if c.Broadcaster.PingInterval == 0 {
		c.Broadcaster.PingInterval = 30 * time.Second
	}
	if c.Broadcaster.GracePeriod == 0 {
		c.Broadcaster.GracePeriod = 60 * time.Second
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Broadcaster.GracePeriod < c.Broadcaster.PingInterval {
		errs = append(errs, "broadcaster.grace_period must be at least broadcaster.ping_interval")
	}
	if c.QGenda.SyncCron != "" && c.QGenda.BaseURL == "" {
		errs = append(errs, "qgenda.base_url is required when qgenda.sync_cron is set")
	}
	for i, r := range c.Rules {
		if r.ConflictType == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].conflict_type is required", i))
		}
		if r.Strategy == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].strategy is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
