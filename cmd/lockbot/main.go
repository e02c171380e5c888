// lockbot - Telegram access control for a Nuki smart lock
//
// This is the main entry point. It wires the permission store, the
// confirmation and admin-session state, the Nuki bridge client and the
// Telegram gateway, plus the optional HTTP API, MQTT and InfluxDB sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/api"
	"github.com/nerrad567/lockbot/internal/bridges/nuki"
	"github.com/nerrad567/lockbot/internal/confirm"
	"github.com/nerrad567/lockbot/internal/dispatch"
	"github.com/nerrad567/lockbot/internal/gateway/telegram"
	"github.com/nerrad567/lockbot/internal/i18n"
	"github.com/nerrad567/lockbot/internal/infrastructure/config"
	"github.com/nerrad567/lockbot/internal/infrastructure/database"
	"github.com/nerrad567/lockbot/internal/infrastructure/influxdb"
	"github.com/nerrad567/lockbot/internal/infrastructure/logging"
	"github.com/nerrad567/lockbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/lockbot/internal/session"
	"github.com/nerrad567/lockbot/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path. A missing default file is not an error:
// lockbot then runs from environment variables alone.
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds how long in-flight interactions may take to drain.
const shutdownTimeout = 30 * time.Second

// startupCheckTimeout bounds the bridge reachability check at startup.
const startupCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - stdout: Destination for --version and --help output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("lockbot", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	configFlag := flagSet.StringP("config", "c", "", "path to the YAML configuration file (env LOCKBOT_CONFIG)")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "lockbot %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting lockbot",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath, err := resolveConfigPath(*configFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("configuration loaded from environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	for _, w := range cfg.Warnings {
		log.Warn("configuration warning", "warning", w)
	}

	// Permission store
	repo, db, err := openRepository(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	store := access.NewStore(repo, ownerIdentities(cfg.Owners))
	store.SetLogger(log)
	if langErr := store.SetDefaultLanguage(access.Language(cfg.I18n.DefaultLang)); langErr != nil {
		return fmt.Errorf("setting default language: %w", langErr)
	}
	if loadErr := store.Load(ctx); loadErr != nil {
		log.Error("loading users failed, starting with an empty user table", "error", loadErr)
	}
	log.Info("permission store initialised",
		"backend", cfg.Storage.Backend,
		"users", store.Count(),
		"owners", store.OwnerCount(),
	)

	policy := access.NewPolicy(store)
	tokens := confirm.NewManager(cfg.Confirm.TTL)
	sessions := session.NewManager(policy.IsAdmin)

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	// Nuki bridge
	bridge, err := nuki.New(cfg.Bridge)
	if err != nil {
		return fmt.Errorf("creating bridge client: %w", err)
	}
	bridge.SetLogger(log)
	checkBridge(ctx, bridge, log)

	// Optional event sinks
	var sinks dispatch.EventSinks
	checks := []api.HealthCheck{{Name: "bridge", Check: bridge.HealthCheck}}
	if db != nil {
		checks = append(checks, api.HealthCheck{Name: "database", Check: db.HealthCheck})
	} else {
		checks = append(checks, api.HealthCheck{Name: "users_file", Check: usersFileCheck(cfg.Storage.UsersFile)})
	}
	deviceID := strconv.FormatInt(cfg.Bridge.DeviceID, 10)

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix(),
		)
		sinks = append(sinks, &mqttEventSink{client: mqttClient, log: log})
		checks = append(checks, api.HealthCheck{Name: "mqtt", Check: mqttClient.HealthCheck})
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, &influxEventSink{writer: influxClient, deviceID: deviceID})
		checks = append(checks, api.HealthCheck{Name: "influxdb", Check: influxClient.HealthCheck})
	} else {
		log.Info("InfluxDB disabled")
	}

	deps := dispatch.Deps{
		Store:    store,
		Policy:   policy,
		Tokens:   tokens,
		Sessions: sessions,
		Bridge:   bridge,
		Catalog:  catalog,
		Logger:   log,
	}
	if len(sinks) > 0 {
		deps.Events = sinks
	}
	dispatcher, err := dispatch.New(deps)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Telegram gateway
	telegram.SetLibraryLogger(log, cfg.Telegram.Token)
	bot, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		return err
	}
	log.Info("telegram bot authorised", "username", bot.Self.UserName, "mode", cfg.Telegram.Mode)

	gateway := telegram.New(bot, dispatcher, telegram.OptionsFromConfig(cfg.Telegram, cfg.Workers))
	gateway.SetLogger(log)
	defer func() {
		log.Info("draining telegram gateway")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := gateway.Close(drainCtx); closeErr != nil {
			log.Error("error closing telegram gateway", "error", closeErr)
		}
	}()

	go sweepConfirmations(ctx, tokens, cfg.Confirm.TTL, log)

	webhook := cfg.Telegram.Mode == "webhook"

	// HTTP API (health, status, metrics, webhook)
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Users:    store,
			Tokens:   tokens,
			Sessions: sessions,
			Workers:  gateway,
			Checks:   checks,
			Version:  version,
		}
		if webhook {
			apiDeps.Webhook = gateway.WebhookHandler()
			apiDeps.WebhookPath = cfg.Telegram.Webhook.Path
		}
		server, apiErr := api.New(apiDeps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "addr", server.Addr().String())
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete")

	if webhook {
		url := webhookURL(cfg.Telegram.Webhook)
		if hookErr := gateway.RegisterWebhook(url); hookErr != nil {
			return fmt.Errorf("registering webhook: %w", hookErr)
		}
		log.Info("webhook registered, waiting for updates", "path", cfg.Telegram.Webhook.Path)
		<-ctx.Done()
	} else {
		log.Info("polling for updates", "timeout_seconds", cfg.Telegram.PollTimeout)
		if runErr := gateway.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("polling updates: %w", runErr)
		}
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (no new webhook deliveries)
	// 2. Telegram gateway (drain per-user queues)
	// 3. InfluxDB and MQTT (if enabled)
	// 4. Database (if the sqlite backend is selected)

	log.Info("lockbot stopped")
	return nil
}

// resolveConfigPath picks the configuration file.
//
// The --config flag wins over LOCKBOT_CONFIG. Without either, the default
// path is used when it exists and "" (environment only) otherwise. An
// explicitly named file must exist.
func resolveConfigPath(flagValue string) (string, error) {
	explicit := flagValue
	if explicit == "" {
		explicit = os.Getenv("LOCKBOT_CONFIG")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}

	if _, err := os.Stat(defaultConfigPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config file: %w", err)
	}
	return defaultConfigPath, nil
}

// openRepository builds the configured user table backend. The returned
// database is nil for the JSON backend.
func openRepository(ctx context.Context, cfg config.StorageConfig, log *logging.Logger) (access.Repository, *database.DB, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())
		return access.NewSQLiteRepository(db.DB), db, nil
	default:
		repo := access.NewJSONFileRepository(cfg.UsersFile)
		repo.SetLogger(log)
		log.Info("using users file", "path", repo.Path())
		return repo, nil, nil
	}
}

// ownerIdentities converts configured owner chat IDs.
func ownerIdentities(ids []int64) []access.Identity {
	out := make([]access.Identity, 0, len(ids))
	for _, id := range ids {
		out = append(out, access.Identity(id))
	}
	return out
}

// checkBridge logs whether the bridge answers. An unreachable bridge is not
// fatal: users get a localised error on every lock command until it returns.
func checkBridge(ctx context.Context, bridge *nuki.Client, log *logging.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	if err := bridge.HealthCheck(checkCtx); err != nil {
		log.Warn("nuki bridge not reachable at startup", "error", err)
		return
	}
	log.Info("nuki bridge reachable")
}

// usersFileCheck reports whether the directory holding the users file is
// reachable. The file itself may not exist yet.
func usersFileCheck(path string) func(context.Context) error {
	dir := filepath.Dir(path)
	return func(context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	}
}

// webhookURL joins the public base URL and the webhook path.
func webhookURL(cfg config.WebhookConfig) string {
	return strings.TrimRight(cfg.PublicURL, "/") + cfg.Path
}

// sweepConfirmations periodically drops confirmation tokens that outlived
// the TTL so the pending gauge reflects live tokens only.
func sweepConfirmations(ctx context.Context, tokens *confirm.Manager, ttl time.Duration, log *logging.Logger) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := tokens.Sweep(); n > 0 {
				log.Debug("expired confirmations dropped", "count", n)
			}
		}
	}
}
