package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lockbot.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Owners   []int64        `yaml:"owners"`
	Storage  StorageConfig  `yaml:"storage"`
	Confirm  ConfirmConfig  `yaml:"confirm"`
	I18n     I18nConfig     `yaml:"i18n"`
	Workers  WorkersConfig  `yaml:"workers"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Warnings collects non-fatal problems found while loading
	// (for example an OWNERS entry that is not an integer).
	Warnings []string `yaml:"-"`

	// envErrors collects malformed environment overrides; reported by Validate.
	envErrors []string
}

// TelegramConfig contains chat transport settings.
type TelegramConfig struct {
	Token string `yaml:"token"`

	// Mode is "polling" (long polling getUpdates) or "webhook".
	Mode string `yaml:"mode"`

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout"`

	Webhook WebhookConfig `yaml:"webhook"`

	// Debug enables request/response logging inside the Telegram client.
	Debug bool `yaml:"debug"`
}

// WebhookConfig contains webhook delivery settings. Only used in webhook mode.
type WebhookConfig struct {
	// PublicURL is the externally reachable base URL Telegram posts to.
	PublicURL string `yaml:"public_url"`

	// Path is the route the API server mounts the webhook handler on.
	Path string `yaml:"path"`

	// SecretToken is registered with setWebhook; Telegram echoes it in the
	// X-Telegram-Bot-Api-Secret-Token header of every delivery. Requests
	// without it are rejected. 1-256 characters of A-Z, a-z, 0-9, _ and -.
	SecretToken string `yaml:"secret_token"`
}

// BridgeConfig contains Nuki bridge HTTP API settings.
type BridgeConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Token      string        `yaml:"token"`
	DeviceID   int64         `yaml:"device_id"`
	DeviceType int           `yaml:"device_type"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig selects and configures the user table backend.
type StorageConfig struct {
	// Backend is "json" (single file, atomic replace) or "sqlite".
	Backend   string         `yaml:"backend"`
	UsersFile string         `yaml:"users_file"`
	Database  DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ConfirmConfig contains open-door confirmation settings.
type ConfirmConfig struct {
	// TTL bounds how long a pending confirmation stays valid.
	// Zero (the default) disables wall-clock expiry: a confirmation lives
	// until it is answered or superseded.
	TTL time.Duration `yaml:"ttl"`
}

// I18nConfig contains text catalog settings.
type I18nConfig struct {
	DefaultLang string `yaml:"default_lang"`
}

// WorkersConfig controls the per-identity interaction workers.
type WorkersConfig struct {
	QueueSize   int           `yaml:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// APIConfig contains HTTP server settings (health, metrics, webhook).
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern LOCKBOT_SECTION_KEY. The variable
// names used by existing single-file deployments (TELEGRAM_BOT_TOKEN,
// NUKI_BRIDGE_HOST, NUKI_BRIDGE_PORT, NUKI_TOKEN, NUKI_ID, NUKI_DEVICE_TYPE,
// OWNERS, USERS_FILE) are honoured as well.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for env-only configuration
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if len(cfg.Owners) == 0 {
		cfg.Warnings = append(cfg.Warnings,
			"no owners defined: nobody will have admin permissions (set OWNERS to a comma-separated list of chat IDs)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Security-relevant values (bot token, bridge token) have no default.
func defaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Mode:        "polling",
			PollTimeout: 60,
			Webhook: WebhookConfig{
				Path: "/telegram/webhook",
			},
		},
		Bridge: BridgeConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			DeviceType: 0,
			Timeout:    10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   "json",
			UsersFile: "users.json",
			Database: DatabaseConfig{
				Path:        "./data/lockbot.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Confirm: ConfirmConfig{
			TTL: 0,
		},
		I18n: I18nConfig{
			DefaultLang: "it",
		},
		Workers: WorkersConfig{
			QueueSize:   16,
			IdleTimeout: 5 * time.Minute,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lockbot",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "lockbot",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Telegram
	if v := firstEnv("LOCKBOT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("LOCKBOT_TELEGRAM_MODE"); v != "" {
		cfg.Telegram.Mode = v
	}
	if v := os.Getenv("LOCKBOT_TELEGRAM_WEBHOOK_URL"); v != "" {
		cfg.Telegram.Webhook.PublicURL = v
	}
	if v := os.Getenv("LOCKBOT_TELEGRAM_WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.Webhook.SecretToken = v
	}

	// Bridge
	if v := firstEnv("LOCKBOT_BRIDGE_HOST", "NUKI_BRIDGE_HOST"); v != "" {
		cfg.Bridge.Host = v
	}
	if v := firstEnv("LOCKBOT_BRIDGE_PORT", "NUKI_BRIDGE_PORT"); v != "" {
		if n, ok := cfg.envInt("NUKI_BRIDGE_PORT", v); ok {
			cfg.Bridge.Port = int(n)
		}
	}
	if v := firstEnv("LOCKBOT_BRIDGE_TOKEN", "NUKI_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}
	if v := firstEnv("LOCKBOT_BRIDGE_DEVICE_ID", "NUKI_ID"); v != "" {
		if n, ok := cfg.envInt("NUKI_ID", v); ok {
			cfg.Bridge.DeviceID = n
		}
	}
	if v := firstEnv("LOCKBOT_BRIDGE_DEVICE_TYPE", "NUKI_DEVICE_TYPE"); v != "" {
		if n, ok := cfg.envInt("NUKI_DEVICE_TYPE", v); ok {
			cfg.Bridge.DeviceType = int(n)
		}
	}

	// Owners
	if v := firstEnv("LOCKBOT_OWNERS", "OWNERS"); strings.TrimSpace(v) != "" {
		cfg.Owners = cfg.parseOwners(v)
	}

	// Storage
	if v := firstEnv("LOCKBOT_USERS_FILE", "USERS_FILE"); v != "" {
		cfg.Storage.UsersFile = v
	}
	if v := os.Getenv("LOCKBOT_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LOCKBOT_DATABASE_PATH"); v != "" {
		cfg.Storage.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LOCKBOT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LOCKBOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LOCKBOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LOCKBOT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("LOCKBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// firstEnv returns the value of the first non-empty environment variable.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// envInt parses an integer override, recording a validation error on failure.
func (c *Config) envInt(name, raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		c.envErrors = append(c.envErrors, fmt.Sprintf("env variable %s must be an integer, got %q", name, raw))
		return 0, false
	}
	return n, true
}

// parseOwners parses a comma-separated list of chat IDs.
// Invalid entries are skipped and reported as warnings.
func (c *Config) parseOwners(raw string) []int64 {
	var owners []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid OWNERS entry %q (not an int)", part))
			continue
		}
		owners = append(owners, id)
	}
	return owners
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	errs := append([]string(nil), c.envErrors...)

	// Secrets are never defaulted. A bot without a token cannot receive
	// updates, and a bridge without a token would be unauthenticated.
	if c.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required (set TELEGRAM_BOT_TOKEN)")
	}
	if c.Bridge.Token == "" {
		errs = append(errs, "bridge.token is required (set NUKI_TOKEN)")
	}
	if c.Bridge.DeviceID == 0 {
		errs = append(errs, "bridge.device_id is required (set NUKI_ID)")
	}

	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if c.Telegram.Webhook.PublicURL == "" {
			errs = append(errs, "telegram.webhook.public_url is required in webhook mode")
		}
		if !c.API.Enabled {
			errs = append(errs, "api.enabled must be true in webhook mode")
		}
		if !strings.HasPrefix(c.Telegram.Webhook.Path, "/") {
			errs = append(errs, "telegram.webhook.path must start with /")
		}
		if !validSecretToken(c.Telegram.Webhook.SecretToken) {
			errs = append(errs, "telegram.webhook.secret_token is required in webhook mode "+
				"(1-256 characters of A-Z, a-z, 0-9, _ and -; set LOCKBOT_TELEGRAM_WEBHOOK_SECRET)")
		}
	default:
		errs = append(errs, "telegram.mode must be polling or webhook")
	}

	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		errs = append(errs, "bridge.port must be between 1 and 65535")
	}
	if c.Bridge.Timeout <= 0 {
		errs = append(errs, "bridge.timeout must be positive")
	}

	switch c.Storage.Backend {
	case "json":
		if c.Storage.UsersFile == "" {
			errs = append(errs, "storage.users_file is required for the json backend")
		}
	case "sqlite":
		if c.Storage.Database.Path == "" {
			errs = append(errs, "storage.database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, "storage.backend must be json or sqlite")
	}

	if c.Confirm.TTL < 0 {
		errs = append(errs, "confirm.ttl must not be negative")
	}

	switch c.I18n.DefaultLang {
	case "it", "en":
	default:
		errs = append(errs, "i18n.default_lang must be it or en")
	}

	if c.Workers.QueueSize < 1 {
		errs = append(errs, "workers.queue_size must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BridgeBaseURL returns the base URL of the lock bridge HTTP API.
func (c *Config) BridgeBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Bridge.Host, c.Bridge.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// validSecretToken applies Telegram's rules for setWebhook secret_token.
func validSecretToken(s string) bool {
	if len(s) == 0 || len(s) > 256 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
