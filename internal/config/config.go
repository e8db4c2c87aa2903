// Package config handles loading and validating continuum configuration.
// Supports YAML config files and environment variable overrides.
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

// Validation errors.
var (
	ErrNoSchedule      = errors.New("schedule requires a cron expression or an interval")
	ErrInvalidInterval = errors.New("schedule interval is not a valid duration")
	ErrInvalidLogLevel = errors.New("logging level must be debug, info, warn, or error")
	ErrInvalidWindow   = errors.New("schedule window requires both start and end")
	ErrMissingDBPath   = errors.New("db path is required")
)

// Config holds all continuum configuration.
type Config struct {
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Automation AutomationConfig `mapstructure:"automation"`
	Team       TeamConfig       `mapstructure:"team"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Jira       JiraConfig       `mapstructure:"jira"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	DB         DBConfig         `mapstructure:"db"`
}

// ScheduleConfig controls the periodic registry sweep.
type ScheduleConfig struct {
	Cron     string        `mapstructure:"cron"`
	Interval string        `mapstructure:"interval"`
	Window   *WindowConfig `mapstructure:"window"`
}

// WindowConfig restricts sweeps to a daily time window.
type WindowConfig struct {
	Start    string `mapstructure:"start"` // HH:MM
	End      string `mapstructure:"end"`   // HH:MM
	Timezone string `mapstructure:"timezone"`
}

// ServerConfig controls the webhook/API listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// AutomationConfig gates autonomous actions.
type AutomationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TeamConfig locates the teammate roster.
type TeamConfig struct {
	RosterPath string `mapstructure:"roster_path"`
}

// NotifyConfig holds Slack credentials.
type NotifyConfig struct {
	SlackToken string `mapstructure:"slack_token"`
}

// GitHubConfig holds GitHub API access settings.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	Repo  string `mapstructure:"repo"` // owner/name
}

// JiraConfig holds Jira API access settings.
type JiraConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	APIToken string `mapstructure:"api_token"`
}

// CalendarConfig holds calendar access settings.
type CalendarConfig struct {
	ICSPath string `mapstructure:"ics_path"`
}

// DBConfig locates the sqlite database.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "continuum", "continuum.yaml")
}

// Load reads configuration from file and environment. A missing config
// file is not an error; defaults and CONTINUUM_* env vars still apply.
func Load() (*Config, error) {
	return LoadFrom(GlobalConfigPath())
}

// LoadFrom reads configuration from the given file and environment.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CONTINUUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("schedule.interval", "15m")
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.retention_days", 7)
	v.SetDefault("logging.path", filepath.Join(home, ".local", "share", "continuum", "logs"))
	v.SetDefault("db.path", filepath.Join(home, ".local", "share", "continuum", "continuum.db"))
	v.SetDefault("automation.enabled", false)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Schedule.Cron == "" && c.Schedule.Interval == "" {
		return ErrNoSchedule
	}
	if c.Schedule.Interval != "" {
		if _, err := time.ParseDuration(c.Schedule.Interval); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidInterval, c.Schedule.Interval)
		}
	}
	if c.Schedule.Window != nil {
		if c.Schedule.Window.Start == "" || c.Schedule.Window.End == "" {
			return ErrInvalidWindow
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.DB.Path == "" {
		return ErrMissingDBPath
	}
	return nil
}

// SweepInterval returns the parsed schedule interval, or zero when the
// schedule is cron-based.
func (c *Config) SweepInterval() time.Duration {
	if c.Schedule.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Schedule.Interval)
	if err != nil {
		return 0
	}
	return d
}

// ExpandedDBPath returns the DB path with a leading ~ expanded.
func (c *Config) ExpandedDBPath() string {
	return expandPath(c.DB.Path)
}

// ExpandedRosterPath returns the roster path with a leading ~ expanded.
func (c *Config) ExpandedRosterPath() string {
	return expandPath(c.Team.RosterPath)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
