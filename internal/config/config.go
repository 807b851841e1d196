// Package config provides YAML-based configuration loading for Inspectyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding field is omitted.
const (
	DefaultAgentTimeout      = 15 * time.Minute
	DefaultSchedule          = "*/5 * * * *"
	DefaultConcurrency       = 4
	DefaultMaxRetries        = 3
	DefaultServerPort        = 8080
	DefaultDatabaseDriver    = "mysql"
	DefaultSQLitePath        = "inspectyard.db"
	defaultMySQLPort         = 3306
	defaultMySQLHost         = "127.0.0.1"
	defaultMySQLUser         = "root"
	defaultMySQLDatabaseName = "inspectyard"
)

// Config is the top-level Inspectyard configuration, loaded from inspectyard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Agents   []AgentConfig  `yaml:"agents"`
	Server   ServerConfig   `yaml:"server"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite only
}

// WatchdogConfig holds the scan thresholds.
type WatchdogConfig struct {
	AgentTimeout      time.Duration `yaml:"agent_timeout"`
	Schedule          string        `yaml:"schedule"`
	Concurrency       int           `yaml:"concurrency"`
	DefaultMaxRetries int           `yaml:"default_max_retries"`
}

// AgentConfig is the retry budget and timeout override of one agent.
type AgentConfig struct {
	Name       string        `yaml:"name"`
	Type       string        `yaml:"type"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP trigger/dashboard server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig configures alert delivery. Empty tokens disable a platform.
type NotifyConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token plus the channel alerts are posted to.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// scheduleParser accepts 5-field cron expressions (minute, hour, dom, month,
// dow) and descriptors such as "@hourly" or "@every 5m".
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a watchdog.schedule expression. The daemon uses it too,
// so any schedule that loads also runs.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// Enabled reports whether both token and channel are set.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
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

// AgentTimeout returns the timeout for the named agent, falling back to the
// global watchdog threshold.
func (c *Config) AgentTimeout(name string) time.Duration {
	for _, a := range c.Agents {
		if a.Name == name && a.Timeout > 0 {
			return a.Timeout
		}
	}
	return c.Watchdog.AgentTimeout
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = defaultMySQLHost
		}
		if c.Database.Port == 0 {
			c.Database.Port = defaultMySQLPort
		}
		if c.Database.User == "" {
			c.Database.User = defaultMySQLUser
		}
		if c.Database.Name == "" {
			c.Database.Name = defaultMySQLDatabaseName
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = DefaultSQLitePath
		}
	}

	if c.Watchdog.AgentTimeout == 0 {
		c.Watchdog.AgentTimeout = DefaultAgentTimeout
	}
	if c.Watchdog.Schedule == "" {
		c.Watchdog.Schedule = DefaultSchedule
	}
	if c.Watchdog.Concurrency == 0 {
		c.Watchdog.Concurrency = DefaultConcurrency
	}
	if c.Watchdog.DefaultMaxRetries == 0 {
		c.Watchdog.DefaultMaxRetries = DefaultMaxRetries
	}
	for i := range c.Agents {
		if c.Agents[i].MaxRetries == 0 {
			c.Agents[i].MaxRetries = c.Watchdog.DefaultMaxRetries
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (mysql, sqlite)", c.Database.Driver))
	}
	if c.Watchdog.AgentTimeout < 0 {
		errs = append(errs, "watchdog.agent_timeout must be positive")
	}
	if c.Watchdog.Concurrency < 0 {
		errs = append(errs, "watchdog.concurrency must be positive")
	}
	if c.Watchdog.DefaultMaxRetries < 0 {
		errs = append(errs, "watchdog.default_max_retries must not be negative")
	}
	if _, err := ParseSchedule(c.Watchdog.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("watchdog.schedule %q is invalid: %v", c.Watchdog.Schedule, err))
	}
	seen := make(map[string]bool)
	for i, a := range c.Agents {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].name is required", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("agents[%d].name %q is duplicated", i, a.Name))
		}
		seen[a.Name] = true
		if a.MaxRetries < 0 {
			errs = append(errs, fmt.Sprintf("agents[%d].max_retries must not be negative", i))
		}
		if a.Timeout < 0 {
			errs = append(errs, fmt.Sprintf("agents[%d].timeout must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
