// Package main is the entry point for the stokvel bot and its admin API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gitlab.com/yelinaung/stokvel-bot/internal/api"
	"gitlab.com/yelinaung/stokvel-bot/internal/auth"
	"gitlab.com/yelinaung/stokvel-bot/internal/blob"
	"gitlab.com/yelinaung/stokvel-bot/internal/bot"
	"gitlab.com/yelinaung/stokvel-bot/internal/config"
	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/gemini"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
	"gitlab.com/yelinaung/stokvel-bot/internal/repository"
	"gitlab.com/yelinaung/stokvel-bot/internal/scheduler"
	"gitlab.com/yelinaung/stokvel-bot/internal/session"
	"gitlab.com/yelinaung/stokvel-bot/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("stokvel-bot %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "hash-code" {
		hashCode()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:       cfg.OTelExporter,
		ServiceName:    "stokvel-bot",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	clock := cfg.Clock()
	l := ledger.New(
		repository.NewStore(pool),
		ledger.WithPolicy(cfg.Policy),
		ledger.WithClock(clock),
		ledger.WithAuditSink(repository.NewAuditRepository(pool)),
	)
	reports := report.NewService(l, clock)

	matcher, err := auth.NewMatcher(cfg.AdminAccessCode, cfg.AdminAccessCodeHash)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up admin access code")
	}

	sched, err := scheduler.New(l.Members, cfg.ReconcileSchedule, cfg.Location())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create reconciliation scheduler")
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	var wg sync.WaitGroup

	server := api.NewServer(l, reports, matcher, clock, pool.Ping)
	wg.Go(func() {
		if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	})

	if cfg.BotEnabled() {
		telegramBot, err := newBot(ctx, cfg, l, reports, matcher, clock)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create bot")
		}
		wg.Go(func() { telegramBot.Start(ctx) })
	} else {
		logger.Log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, running the admin API only")
	}

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down...")
	wg.Wait()
}

// newBot assembles the Telegram bot and the stores it keeps proofs and sessions in.
func newBot(
	ctx context.Context,
	cfg *config.Config,
	l *ledger.Ledger,
	reports *report.Service,
	matcher *auth.Matcher,
	clock policy.Clock,
) (*bot.Bot, error) {
	var blobs blob.Store = blob.DataURLStore{}
	if cfg.BlobDir != "" {
		fileStore, err := blob.NewFileStore(cfg.BlobDir)
		if err != nil {
			return nil, err
		}
		blobs = fileStore
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := session.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		sessions = session.NewRedisStore(client, "")
	}

	deps := bot.Deps{
		Ledger:   l,
		Reports:  reports,
		Blobs:    blobs,
		Sessions: sessions,
		Admins:   auth.NewSessions(matcher, sessions, cfg.AdminSessionTTL),
		Clock:    clock,
	}

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		deps.Proofs = client
	} else {
		logger.Log.Info().Msg("GEMINI_API_KEY not set, proof reading disabled")
	}

	return bot.New(cfg, deps)
}

// hashCode prints the bcrypt hash of the code given as the next argument,
// for use as ADMIN_ACCESS_CODE_HASH.
func hashCode() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: stokvel-bot hash-code <code>")
		os.Exit(2)
	}
	hash, err := auth.HashCode(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
