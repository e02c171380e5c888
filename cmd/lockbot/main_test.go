package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/confirm"
	"github.com/nerrad567/lockbot/internal/infrastructure/config"
	"github.com/nerrad567/lockbot/internal/infrastructure/logging"
)

// clearTokenEnv makes sure tokens from the developer's shell do not leak
// into config loading.
func clearTokenEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LOCKBOT_CONFIG",
		"LOCKBOT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN",
		"LOCKBOT_BRIDGE_TOKEN", "NUKI_TOKEN",
		"LOCKBOT_BRIDGE_DEVICE_ID", "NUKI_ID",
	} {
		t.Setenv(name, "")
	}
}

func runWithTimeout(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, args, &out)
	return out.String(), err
}

// TestRun_Version verifies --version prints build information and exits.
func TestRun_Version(t *testing.T) {
	out, err := runWithTimeout(t, "--version")
	if err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out, "lockbot "+version) {
		t.Errorf("output = %q, want version", out)
	}
}

// TestRun_Help verifies --help is not treated as a failure.
func TestRun_Help(t *testing.T) {
	out, err := runWithTimeout(t, "--help")
	if err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
	if !strings.Contains(out, "--config") {
		t.Errorf("help output = %q, want --config", out)
	}
}

// TestRun_UnknownFlag verifies flag errors are returned.
func TestRun_UnknownFlag(t *testing.T) {
	if _, err := runWithTimeout(t, "--no-such-flag"); err == nil {
		t.Fatal("run() should fail on an unknown flag")
	}
}

// TestRun_MissingConfigFile verifies an explicit config path must exist.
func TestRun_MissingConfigFile(t *testing.T) {
	clearTokenEnv(t)

	_, err := runWithTimeout(t, "--config", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with a missing config file")
	}
	if !strings.Contains(err.Error(), "config file") {
		t.Errorf("error = %v, want config file error", err)
	}
}

// TestRun_MissingConfigFileFromEnv verifies LOCKBOT_CONFIG is honoured.
func TestRun_MissingConfigFileFromEnv(t *testing.T) {
	clearTokenEnv(t)
	t.Setenv("LOCKBOT_CONFIG", "/nonexistent/path/config.yaml")

	if _, err := runWithTimeout(t); err == nil {
		t.Fatal("run() should fail with a missing config file")
	}
}

// TestRun_MissingTelegramToken verifies validation stops startup before
// anything is contacted.
func TestRun_MissingTelegramToken(t *testing.T) {
	clearTokenEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bridge:
  host: "127.0.0.1"
  port: 8080
  token: "bridge-token"
  device_id: 12345

storage:
  backend: json
  users_file: "users.json"

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := runWithTimeout(t, "--config", configPath)
	if err == nil {
		t.Fatal("run() should fail without a telegram token")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want config validation error", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	clearTokenEnv(t)

	dir := t.TempDir()
	t.Chdir(dir)

	existing := filepath.Join(dir, "explicit.yaml")
	if err := os.WriteFile(existing, []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	// No flag, no env, no default file: environment-only configuration.
	got, err := resolveConfigPath("")
	if err != nil || got != "" {
		t.Errorf("resolveConfigPath() = %q, %v, want \"\", nil", got, err)
	}

	got, err = resolveConfigPath(existing)
	if err != nil || got != existing {
		t.Errorf("resolveConfigPath(flag) = %q, %v, want %q", got, err, existing)
	}

	t.Setenv("LOCKBOT_CONFIG", existing)
	got, err = resolveConfigPath("")
	if err != nil || got != existing {
		t.Errorf("resolveConfigPath(env) = %q, %v, want %q", got, err, existing)
	}

	if _, err = resolveConfigPath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("resolveConfigPath(missing flag) should fail")
	}

	t.Setenv("LOCKBOT_CONFIG", "")
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, defaultConfigPath), []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = resolveConfigPath("")
	if err != nil || got != defaultConfigPath {
		t.Errorf("resolveConfigPath(default present) = %q, %v, want %q", got, err, defaultConfigPath)
	}
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		repo, db, err := openRepository(ctx, config.StorageConfig{
			Backend:   "json",
			UsersFile: filepath.Join(dir, "users.json"),
		}, logging.Nop())
		if err != nil {
			t.Fatalf("openRepository() error = %v", err)
		}
		if db != nil {
			t.Error("json backend should not open a database")
		}
		if _, ok := repo.(*access.JSONFileRepository); !ok {
			t.Errorf("repo = %T, want *access.JSONFileRepository", repo)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		repo, db, err := openRepository(ctx, config.StorageConfig{
			Backend: "sqlite",
			Database: config.DatabaseConfig{
				Path:        filepath.Join(dir, "lockbot.db"),
				WALMode:     true,
				BusyTimeout: 5,
			},
		}, logging.Nop())
		if err != nil {
			t.Fatalf("openRepository() error = %v", err)
		}
		defer db.Close()

		users := map[access.Identity]access.UserRecord{
			42: {Identity: 42, Name: "Anna", Allowed: []access.Capability{access.CapStatus}, Lang: access.LangEN},
		}
		if err := repo.Save(ctx, users); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		loaded, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded[42].Name != "Anna" {
			t.Errorf("loaded = %+v, want Anna", loaded)
		}
	})
}

func TestOwnerIdentities(t *testing.T) {
	got := ownerIdentities([]int64{1, -100200})
	if len(got) != 2 || got[0] != 1 || got[1] != -100200 {
		t.Errorf("ownerIdentities() = %v", got)
	}
	if got := ownerIdentities(nil); got == nil || len(got) != 0 {
		t.Errorf("ownerIdentities(nil) = %v, want empty slice", got)
	}
}

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WebhookConfig
		want string
	}{
		{"plain", config.WebhookConfig{PublicURL: "https://bot.example.com", Path: "/telegram/webhook"}, "https://bot.example.com/telegram/webhook"},
		{"trailing slash", config.WebhookConfig{PublicURL: "https://bot.example.com/", Path: "/hook"}, "https://bot.example.com/hook"},
		{"base path", config.WebhookConfig{PublicURL: "https://example.com/lockbot", Path: "/hook"}, "https://example.com/lockbot/hook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := webhookURL(tt.cfg); got != tt.want {
				t.Errorf("webhookURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsersFileCheck(t *testing.T) {
	dir := t.TempDir()

	if err := usersFileCheck(filepath.Join(dir, "users.json"))(context.Background()); err != nil {
		t.Errorf("check on existing directory error = %v", err)
	}
	if err := usersFileCheck(filepath.Join(dir, "missing", "users.json"))(context.Background()); err == nil {
		t.Error("check on missing directory should fail")
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := usersFileCheck(filepath.Join(file, "users.json"))(context.Background()); err == nil {
		t.Error("check with a file as parent should fail")
	}
}

// TestSweepConfirmations_Disabled verifies a zero TTL does not start a ticker.
func TestSweepConfirmations_Disabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		sweepConfirmations(context.Background(), confirm.NewManager(0), 0, logging.Nop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweepConfirmations with zero TTL did not return")
	}
}

// TestSweepConfirmations_StopsOnCancel verifies the sweeper exits with ctx.
func TestSweepConfirmations_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweepConfirmations(ctx, confirm.NewManager(time.Minute), time.Minute, logging.Nop())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweepConfirmations did not stop after cancel")
	}
}
