// Package config provides YAML-based configuration loading for Admitflow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zulandar/admitflow/internal/models"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvDBPassword   = "ADMITFLOW_DB_PASSWORD"
	EnvSlackToken   = "ADMITFLOW_SLACK_TOKEN"
	EnvDiscordToken = "ADMITFLOW_DISCORD_TOKEN"
)

// Config is the top-level Admitflow configuration, loaded from admitflow.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Automation AutomationConfig `yaml:"automation"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Notify     NotifyConfig     `yaml:"notify"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Stages     StagesConfig     `yaml:"stages"`
	Workflows  []WorkflowConfig `yaml:"workflows"`
}

// DatabaseConfig selects and locates the entity store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// AutomationConfig tunes the rule engine's outbound calls.
type AutomationConfig struct {
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	WebhookRate    float64       `yaml:"webhook_rate"` // requests per second across all rules
}

// SweeperConfig controls the inactivity sweeper job.
type SweeperConfig struct {
	Schedule            string        `yaml:"schedule"`
	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	FollowUpDue         time.Duration `yaml:"follow_up_due"`
	OverdueTriggers     *bool         `yaml:"overdue_triggers"`
}

// OverdueEnabled reports whether the sweeper fires task_overdue.
func (s SweeperConfig) OverdueEnabled() bool {
	return s.OverdueTriggers == nil || *s.OverdueTriggers
}

// NotifyConfig configures send_notification channels.
type NotifyConfig struct {
	DefaultChannel string        `yaml:"default_channel"`
	Slack          ChannelConfig `yaml:"slack"`
	Discord        ChannelConfig `yaml:"discord"`
}

// ChannelConfig holds chat platform credentials.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether the channel has credentials.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// DashboardConfig holds the admin API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// StagesConfig lists pipeline stages, in order, seeded by `af db init`.
type StagesConfig struct {
	Lead        []string `yaml:"lead"`
	Application []string `yaml:"application"`
}

// WorkflowConfig is a rule definition seeded by `af db init`.
type WorkflowConfig struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Trigger     string          `yaml:"trigger"`
	Conditions  map[string]any  `yaml:"conditions"`
	Actions     []models.Action `yaml:"actions"`
	Active      *bool           `yaml:"active"`
}

// IsActive defaults to true when unset.
func (w WorkflowConfig) IsActive() bool {
	return w.Active == nil || *w.Active
}

// Default pipeline stages.
var (
	DefaultLeadStages        = []string{"Inquiry", "Lead", "Application", "Admission", "Enrollment"}
	DefaultApplicationStages = []string{"Document Verification", "Fee Payment", "Admission Processing", "Admission Done"}
)

// Load reads a YAML config file from path, overlays environment secrets
// (including a .env file next to the working directory, if present), and
// returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
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
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "admitflow"
		}
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "admitflow.db"
	}
	if c.Automation.WebhookTimeout <= 0 {
		c.Automation.WebhookTimeout = 5 * time.Second
	}
	if c.Automation.WebhookRate <= 0 {
		c.Automation.WebhookRate = 10
	}
	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "@every 1h"
	}
	if c.Sweeper.InactivityThreshold <= 0 {
		c.Sweeper.InactivityThreshold = 48 * time.Hour
	}
	if c.Sweeper.FollowUpDue <= 0 {
		c.Sweeper.FollowUpDue = 24 * time.Hour
	}
	if c.Notify.DefaultChannel == "" {
		c.Notify.DefaultChannel = "log"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if len(c.Stages.Lead) == 0 {
		c.Stages.Lead = DefaultLeadStages
	}
	if len(c.Stages.Application) == 0 {
		c.Stages.Application = DefaultApplicationStages
	}
}

// applyEnv overlays secrets from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvSlackToken); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := os.Getenv(EnvDiscordToken); v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	switch c.Notify.DefaultChannel {
	case "log":
	case "slack":
		if !c.Notify.Slack.Enabled() {
			errs = append(errs, "notify.default_channel is slack but notify.slack is not configured")
		}
	case "discord":
		if !c.Notify.Discord.Enabled() {
			errs = append(errs, "notify.default_channel is discord but notify.discord is not configured")
		}
	default:
		errs = append(errs, fmt.Sprintf("notify.default_channel %q must be log, slack or discord", c.Notify.DefaultChannel))
	}
	seen := make(map[string]bool)
	for i, w := range c.Workflows {
		if w.Name == "" {
			errs = append(errs, fmt.Sprintf("workflows[%d].name is required", i))
		} else if seen[w.Name] {
			errs = append(errs, fmt.Sprintf("workflows[%d].name %q is duplicated", i, w.Name))
		}
		seen[w.Name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
