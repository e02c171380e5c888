package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LOCKBOT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN", "LOCKBOT_TELEGRAM_MODE", "LOCKBOT_TELEGRAM_WEBHOOK_URL", "LOCKBOT_TELEGRAM_WEBHOOK_SECRET",
		"LOCKBOT_BRIDGE_HOST", "NUKI_BRIDGE_HOST", "LOCKBOT_BRIDGE_PORT", "NUKI_BRIDGE_PORT",
		"LOCKBOT_BRIDGE_TOKEN", "NUKI_TOKEN", "LOCKBOT_BRIDGE_DEVICE_ID", "NUKI_ID",
		"LOCKBOT_BRIDGE_DEVICE_TYPE", "NUKI_DEVICE_TYPE", "LOCKBOT_OWNERS", "OWNERS",
		"LOCKBOT_USERS_FILE", "USERS_FILE", "LOCKBOT_STORAGE_BACKEND", "LOCKBOT_DATABASE_PATH",
		"LOCKBOT_MQTT_HOST", "LOCKBOT_MQTT_USERNAME", "LOCKBOT_MQTT_PASSWORD",
		"LOCKBOT_INFLUXDB_TOKEN", "LOCKBOT_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
telegram:
  token: "123:abc"
bridge:
  host: "10.0.0.5"
  port: 8081
  token: "bridge-secret"
  device_id: 42
  timeout: 5s
owners: [100, 101]
storage:
  backend: json
  users_file: "/tmp/users.json"
confirm:
  ttl: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "123:abc")
	}
	if cfg.Bridge.Host != "10.0.0.5" || cfg.Bridge.Port != 8081 {
		t.Errorf("Bridge = %s:%d, want 10.0.0.5:8081", cfg.Bridge.Host, cfg.Bridge.Port)
	}
	if cfg.Bridge.Timeout != 5*time.Second {
		t.Errorf("Bridge.Timeout = %v, want 5s", cfg.Bridge.Timeout)
	}
	if len(cfg.Owners) != 2 || cfg.Owners[0] != 100 {
		t.Errorf("Owners = %v, want [100 101]", cfg.Owners)
	}
	if cfg.Confirm.TTL != 30*time.Second {
		t.Errorf("Confirm.TTL = %v, want 30s", cfg.Confirm.TTL)
	}
	if got := cfg.BridgeBaseURL(); got != "http://10.0.0.5:8081" {
		t.Errorf("BridgeBaseURL() = %q", got)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("NUKI_TOKEN", "nuki")
	t.Setenv("NUKI_ID", "777")
	t.Setenv("OWNERS", "100, abc, ,200")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.DeviceID != 777 {
		t.Errorf("Bridge.DeviceID = %d, want 777", cfg.Bridge.DeviceID)
	}
	if cfg.Bridge.Host != "127.0.0.1" || cfg.Bridge.Port != 8080 {
		t.Errorf("bridge defaults not applied: %s:%d", cfg.Bridge.Host, cfg.Bridge.Port)
	}
	if cfg.Confirm.TTL != 0 {
		t.Errorf("Confirm.TTL = %v, want 0", cfg.Confirm.TTL)
	}
	if len(cfg.Owners) != 2 || cfg.Owners[0] != 100 || cfg.Owners[1] != 200 {
		t.Errorf("Owners = %v, want [100 200]", cfg.Owners)
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "abc") {
		t.Errorf("Warnings = %v, want one warning about abc", cfg.Warnings)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error without tokens, got nil")
	}
	for _, want := range []string{"telegram.token", "bridge.token", "bridge.device_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_InvalidIntegerEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("NUKI_TOKEN", "nuki")
	t.Setenv("NUKI_ID", "not-a-number")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for non-integer NUKI_ID")
	}
	if !strings.Contains(err.Error(), "NUKI_ID must be an integer") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_NoOwnersWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("NUKI_TOKEN", "nuki")
	t.Setenv("NUKI_ID", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "no owners") {
		t.Errorf("Warnings = %v, want no-owners warning", cfg.Warnings)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Telegram.Token = "tok"
		cfg.Bridge.Token = "nuki"
		cfg.Bridge.DeviceID = 1
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Telegram.Mode = "carrier-pigeon" },
			wantErr: "telegram.mode",
		},
		{
			name: "webhook without url",
			mutate: func(c *Config) {
				c.Telegram.Mode = "webhook"
				c.API.Enabled = true
			},
			wantErr: "public_url",
		},
		{
			name: "webhook without api",
			mutate: func(c *Config) {
				c.Telegram.Mode = "webhook"
				c.Telegram.Webhook.PublicURL = "https://bot.example.org"
			},
			wantErr: "api.enabled",
		},
		{
			name: "webhook without secret",
			mutate: func(c *Config) {
				c.Telegram.Mode = "webhook"
				c.Telegram.Webhook.PublicURL = "https://bot.example.org"
				c.API.Enabled = true
			},
			wantErr: "secret_token",
		},
		{
			name: "webhook secret with invalid characters",
			mutate: func(c *Config) {
				c.Telegram.Mode = "webhook"
				c.Telegram.Webhook.PublicURL = "https://bot.example.org"
				c.Telegram.Webhook.SecretToken = "not a valid/secret"
				c.API.Enabled = true
			},
			wantErr: "secret_token",
		},
		{
			name: "webhook fully configured",
			mutate: func(c *Config) {
				c.Telegram.Mode = "webhook"
				c.Telegram.Webhook.PublicURL = "https://bot.example.org"
				c.Telegram.Webhook.SecretToken = "s3cret_Token-123"
				c.API.Enabled = true
			},
		},
		{
			name:    "bad bridge port",
			mutate:  func(c *Config) { c.Bridge.Port = 70000 },
			wantErr: "bridge.port",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: "storage.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.Database.Path = ""
			},
			wantErr: "storage.database.path",
		},
		{
			name:    "unsupported default language",
			mutate:  func(c *Config) { c.I18n.DefaultLang = "de" },
			wantErr: "i18n.default_lang",
		},
		{
			name: "mqtt qos out of range",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 10, Write: 20, Idle: 30},
		},
	}

	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 30*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 30s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCKBOT_TELEGRAM_TOKEN", "primary")
	t.Setenv("TELEGRAM_BOT_TOKEN", "fallback")
	t.Setenv("NUKI_BRIDGE_HOST", "192.168.1.50")
	t.Setenv("NUKI_BRIDGE_PORT", "8088")
	t.Setenv("USERS_FILE", "/var/lib/lockbot/users.json")
	t.Setenv("LOCKBOT_MQTT_PASSWORD", "mqtt-secret")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Telegram.Token != "primary" {
		t.Errorf("Telegram.Token = %q, want LOCKBOT_ variable to win", cfg.Telegram.Token)
	}
	if cfg.Bridge.Host != "192.168.1.50" || cfg.Bridge.Port != 8088 {
		t.Errorf("Bridge = %s:%d", cfg.Bridge.Host, cfg.Bridge.Port)
	}
	if cfg.Storage.UsersFile != "/var/lib/lockbot/users.json" {
		t.Errorf("Storage.UsersFile = %q", cfg.Storage.UsersFile)
	}
	if cfg.MQTT.Auth.Password != "mqtt-secret" {
		t.Errorf("MQTT.Auth.Password not overridden")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Telegram.Token != "" || cfg.Bridge.Token != "" {
		t.Error("secrets must not have defaults")
	}
	if cfg.Bridge.Timeout != 10*time.Second {
		t.Errorf("Bridge.Timeout = %v, want 10s", cfg.Bridge.Timeout)
	}
	if cfg.Storage.Backend != "json" || cfg.Storage.UsersFile != "users.json" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.I18n.DefaultLang != "it" {
		t.Errorf("I18n.DefaultLang = %q, want it", cfg.I18n.DefaultLang)
	}
	if cfg.Confirm.TTL != 0 {
		t.Errorf("Confirm.TTL = %v, want 0 (no expiry unless configured)", cfg.Confirm.TTL)
	}
}
