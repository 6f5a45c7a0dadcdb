package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kiara-bot/kiara/internal/api"
	"github.com/kiara-bot/kiara/internal/conversation"
	"github.com/kiara-bot/kiara/internal/dedup"
	"github.com/kiara-bot/kiara/internal/messenger"
	"github.com/kiara-bot/kiara/internal/outbound"
	"github.com/kiara-bot/kiara/internal/router"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/sms"
	"github.com/kiara-bot/kiara/internal/store"
	"github.com/kiara-bot/kiara/internal/sweeper"
	"github.com/kiara-bot/kiara/internal/util"
)

// Default configuration constants
const (
	// DefaultDBFileName is the default SQLite database path.
	DefaultDBFileName = "data/kiara.db"
	// DefaultAPIAddr is the default HTTP listen address.
	DefaultAPIAddr = ":8080"
)

// Config holds environment configuration
type Config struct {
	DatabaseDSN  string
	RedisAddr    string
	VerifyToken  string
	GraphVersion string
	APIAddr      string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN        *string
	redisAddr    *string
	verifyToken  *string
	graphVersion *string
	apiAddr      *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if *flags.verifyToken == "" {
		slog.Error("VERIFY_TOKEN not set; the webhook handshake cannot succeed")
		os.Exit(1)
	}

	cache := buildDedupCache(*flags.redisAddr)
	sessions := session.NewStore()
	locks := session.NewKeyedLock()
	keywords := store.NewKeywordCache(st)

	client := messenger.NewClient(messenger.WithGraphAPIVersion(*flags.graphVersion))
	scheduler := outbound.NewScheduler(client)
	defer scheduler.Stop()

	ctrl := conversation.NewController(sessions, st, conversationOptions()...)
	events := router.NewRouter(st, keywords, ctrl, locks, cache, scheduler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maintenance := sweeper.NewSweeper(sessions, locks, cache, keywords,
		sweeper.WithSessionTTL(util.ParseDurationEnv("SESSION_TTL", sweeper.DefaultSessionTTL)),
		sweeper.WithDedupCapacity(util.ParseInt64Env("DEDUP_CAPACITY", dedup.DefaultCapacity)))
	if err := maintenance.Start(ctx); err != nil {
		slog.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}
	defer maintenance.Stop()

	server := api.NewServer(events, st, *flags.verifyToken,
		api.WithAddr(*flags.apiAddr),
		api.WithSubscriptions(client))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	slog.Info("Kiara running", "addr", *flags.apiAddr, "redis", *flags.redisAddr != "")
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	slog.Info("Kiara exited")
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		VerifyToken:  os.Getenv("VERIFY_TOKEN"),
		GraphVersion: os.Getenv("GRAPH_API_VERSION"),
		APIAddr:      os.Getenv("API_ADDR"),
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = DefaultDBFileName
		slog.Debug("No DATABASE_DSN set, using default", "dsn", config.DatabaseDSN)
	}
	if config.GraphVersion == "" {
		config.GraphVersion = messenger.DefaultGraphAPIVersion
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	return config
}

// parseCommandLineFlags defines flags with environment-derived defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:        flag.String("db", config.DatabaseDSN, "database DSN (SQLite path or Postgres URL)"),
		redisAddr:    flag.String("redis", config.RedisAddr, "Redis address for shared comment dedup (empty = in-memory)"),
		verifyToken:  flag.String("verify-token", config.VerifyToken, "webhook verification token"),
		graphVersion: flag.String("graph-version", config.GraphVersion, "Graph API version"),
		apiAddr:      flag.String("addr", config.APIAddr, "HTTP listen address"),
	}
	flag.Parse()
	return flags
}

// openStore picks the storage backend from the DSN shape.
func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildDedupCache picks the dedup backend.
func buildDedupCache(redisAddr string) dedup.Cache {
	if redisAddr != "" {
		slog.Info("Using Redis dedup cache", "addr", redisAddr)
		return dedup.NewRedisCache(redisAddr)
	}
	return dedup.NewMemoryCache()
}

// conversationOptions wires the customer confirmation texts when Twilio is
// configured.
func conversationOptions() []conversation.Option {
	sender, err := sms.NewTwilioSender()
	if err != nil {
		slog.Warn("Twilio not configured, confirmation texts disabled", "error", err)
		return nil
	}
	return []conversation.Option{conversation.WithSMS(sender)}
}
