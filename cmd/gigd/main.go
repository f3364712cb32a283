package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bandaid/internal/api"
	"bandaid/internal/audit"
	"bandaid/internal/config"
	"bandaid/internal/events"
	"bandaid/internal/gigs"
	"bandaid/internal/recordings"
	"bandaid/internal/reminders"
	"bandaid/internal/service"
	"bandaid/internal/settings"
	"bandaid/internal/storage"
	"bandaid/internal/teleprompter"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BANDAID_CONFIG_PATH"))
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		blobs  storage.BlobStore
		sqlite *storage.SQLiteStore
	)
	switch cfg.Storage.Driver {
	case "memory":
		blobs = storage.NewMemoryStore()
	case "sqlite":
		sqlite, err = storage.NewSQLiteStore(cfg.Storage.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open storage error")
		}
		defer sqlite.Close()
		blobs = sqlite

		backup := storage.NewBackupService(sqlite, cfg.Storage.Backup, &logger)
		if err := backup.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("start backup service error")
		}
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("unknown storage driver")
	}

	// Notification sink
	var (
		sink reminders.Sink
		rdb  *redis.Client
	)
	granted := *cfg.Notifications.PermissionGranted
	switch cfg.Notifications.Driver {
	case "memory":
		sink = reminders.NewMemorySink(granted)
	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		sink = reminders.NewRedisSink(rdb, cfg.Redis.KeyPrefix, granted)
	default:
		logger.Fatal().Str("driver", cfg.Notifications.Driver).Msg("unknown notifications driver")
	}

	display := *cfg.Notifications.Display
	policy := reminders.InitNotifications(reminders.DisplayPolicy{
		PlaySound:  display.PlaySound,
		SetBadge:   display.SetBadge,
		ShowBanner: display.ShowBanner,
		ShowList:   display.ShowList,
	})
	logger.Info().Interface("policy", policy).Msg("Notification display policy set")

	// Telegram is optional; without it reminders and reports go to the log.
	var bot *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" && cfg.Telegram.BotToken != "YOUR_BOT_TOKEN_HERE" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		logger.Info().Str("account", bot.Self.UserName).Msg("Authorized on Telegram")
	}

	// Events
	bus := events.NewEventBus(logger)
	eventTypes := []string{events.GigSaved, events.GigDeleted, events.GigRolledOver}
	for _, typ := range eventTypes {
		bus.Subscribe(typ, events.LogHandler(logger))
	}

	var auditSvc *audit.Service
	if cfg.Audit.Enabled {
		journal := audit.NewJournal(blobs)
		for _, typ := range eventTypes {
			bus.Subscribe(typ, audit.Handler(journal))
		}
		var notifier audit.Notifier
		if bot != nil {
			notifier = audit.NewTelegramNotifier(bot, cfg.Telegram.ChatID)
		}
		auditSvc = audit.NewService(audit.Config{
			RetentionDays: cfg.Audit.RetentionDays,
			ExportOnStart: cfg.Audit.ExportOnStart,
		}, journal, notifier, loc, logger)
		auditSvc.Start()
		defer auditSvc.Stop()
	}

	// Reminders
	metrics := reminders.NewMetrics("bandaid", prometheus.DefaultRegisterer)
	repo := gigs.NewRepository(blobs, logger)
	scheduler := reminders.NewScheduler(repo, sink, logger,
		reminders.WithLocation(loc),
		reminders.WithMetrics(metrics),
		reminders.WithPublisher(bus),
	)
	gigService := service.NewGigService(repo, scheduler, bus, logger)

	if err := gigService.EvaluateAll(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial reminder evaluation finished with errors")
	}

	sweeper := reminders.NewSweeper(gigService, cfg.Scheduler.RefreshCron, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start reminder sweeper error")
	}

	if cfg.Dispatcher.Enabled {
		var deliverer reminders.Deliverer = reminders.NewLogDeliverer(logger)
		if bot != nil {
			deliverer = reminders.NewTelegramDeliverer(bot, cfg.Telegram.ChatID)
		}
		dcfg := reminders.DefaultDispatcherConfig()
		dcfg.PollInterval = cfg.PollInterval()
		dcfg.Rate = cfg.Dispatcher.RatePerSecond
		dcfg.Burst = cfg.Dispatcher.Burst
		dcfg.MaxRetries = cfg.Dispatcher.MaxRetries

		dispatcher := reminders.NewDispatcher(sink, deliverer, dcfg, metrics, logger)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}

	// HTTP API
	httpServer := api.NewHTTPServer(cfg.HTTP.Listen, cfg.HTTP.APIKey, api.Deps{
		Gigs:          gigService,
		Notifications: sink,
		Library:       teleprompter.NewLibrary(blobs, logger),
		Recordings:    recordings.NewStore(blobs, cfg.Recordings.Dir, logger),
		Settings:      settings.NewStore(blobs, logger),
		Location:      loc,
		Ready:         readiness(sqlite, rdb),
	}, prometheus.DefaultRegisterer, logger)
	httpServer.Start()

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Str("timezone", loc.String()).Msg("bandaid started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP API shutdown error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Console {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func readiness(sqlite *storage.SQLiteStore, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if sqlite != nil {
			if err := sqlite.DB.PingContext(ctxPing); err != nil {
				return fmt.Errorf("db not ready: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				return fmt.Errorf("redis not ready: %w", err)
			}
		}
		return nil
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
