package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// StoreConfig selects the relational backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NotifyConfig controls the outbound notification queue.
type NotifyConfig struct {
	QueueSize     int `mapstructure:"queue_size" yaml:"queue_size"`
	Workers       int `mapstructure:"workers" yaml:"workers"`
	MaxAttempts   int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseBackoffMS int `mapstructure:"base_backoff_ms" yaml:"base_backoff_ms"`
	MaxBackoffSec int `mapstructure:"max_backoff_sec" yaml:"max_backoff_sec"`
}

// WebhookConfig points at the external notification webhook.
type WebhookConfig struct {
	URL string `mapstructure:"url" yaml:"url"`

	// CredentialKey names the keyring entry holding the bearer token.
	CredentialKey string `mapstructure:"credential_key" yaml:"credential_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// MailboxConfig configures the shared IMAP folder sink.
type MailboxConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          string `mapstructure:"port" yaml:"port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Folder        string `mapstructure:"folder" yaml:"folder"`
	From          string `mapstructure:"from" yaml:"from"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	CredentialKey string `mapstructure:"credential_key" yaml:"credential_key"`
}

// SchedulerConfig controls the due-reminder poller.
type SchedulerConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	BatchSize   int `mapstructure:"batch_size" yaml:"batch_size"`
}

// AssignConfig controls the assignment merge protocol.
type AssignConfig struct {
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// ReminderConfig holds reminder defaults.
type ReminderConfig struct {
	// Timezone is an IANA name used as "local time"; empty means the
	// process location.
	Timezone    string `mapstructure:"timezone" yaml:"timezone"`
	DefaultTime string `mapstructure:"default_time" yaml:"default_time"`
}

// DraftsConfig selects where buffered reminders wait for their task.
type DraftsConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db" yaml:"redis_db"`
	TTLMin    int    `mapstructure:"ttl_min" yaml:"ttl_min"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File is the rotated JSON log path; empty disables file output.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Webhook   WebhookConfig   `mapstructure:"webhook" yaml:"webhook"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox" yaml:"mailbox"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Assign    AssignConfig    `mapstructure:"assign" yaml:"assign"`
	Reminder  ReminderConfig  `mapstructure:"reminder" yaml:"reminder"`
	Drafts    DraftsConfig    `mapstructure:"drafts" yaml:"drafts"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/hotelops/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "hotelops", "config.yaml")
}

// defaultDataPath returns the default SQLite database location.
func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hotelops.db"
	}
	return filepath.Join(home, ".local", "share", "hotelops", "hotelops.db")
}

var defaults = map[string]any{
	"store.driver":           "sqlite",
	"store.dsn":              defaultDataPath(),
	"server.addr":            ":8080",
	"notify.queue_size":      256,
	"notify.workers":         2,
	"notify.max_attempts":    4,
	"notify.base_backoff_ms": 500,
	"notify.max_backoff_sec": 30,
	"webhook.url":            "",
	"webhook.credential_key": "webhook-token",
	"webhook.timeout_sec":    10,
	"mailbox.enabled":        false,
	"mailbox.host":           "",
	"mailbox.port":           "993",
	"mailbox.username":       "",
	"mailbox.folder":         "Operations",
	"mailbox.from":           "hotelops@localhost",
	"mailbox.tls":            true,
	"mailbox.credential_key": "mailbox-password",
	"scheduler.interval_sec": 30,
	"scheduler.batch_size":   100,
	"assign.max_retries":     3,
	"reminder.timezone":      "",
	"reminder.default_time":  "09:00",
	"drafts.backend":         "memory",
	"drafts.redis_addr":      "localhost:6379",
	"drafts.redis_db":        0,
	"drafts.ttl_min":         120,
	"log.level":              "info",
	"log.file":               "",
}

// DefaultAppConfig returns the built-in defaults. HOTELOPS_* variables
// are not consulted, so the result is the same on every machine.
func DefaultAppConfig() *AppConfig {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("built-in config defaults do not decode: %v", err))
	}
	return cfg
}

// newViper layers HOTELOPS_* environment overrides on the defaults.
func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("HOTELOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus HOTELOPS_* environment
// overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	switch c.Drafts.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("drafts.backend must be memory or redis, got %q", c.Drafts.Backend)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify.max_attempts must be at least 1")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("server", cfg.Server)
	v.Set("notify", cfg.Notify)
	v.Set("webhook", cfg.Webhook)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("assign", cfg.Assign)
	v.Set("reminder", cfg.Reminder)
	v.Set("drafts", cfg.Drafts)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
