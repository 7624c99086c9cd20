package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studiobook/internal/api"
	"studiobook/internal/availability"
	"studiobook/internal/cache"
	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/metrics"
	"studiobook/internal/reservation"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	configPath := config.ResolvePath("")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Logging)

	db, err := database.NewDB(cfg.Database, cfg.QueryTimeout(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	catalog := cache.NewCatalog(db, rdb, cfg.CacheTTL(), &logger)

	bus := events.NewEventBus(logger)
	subscribe(bus, db, &logger)

	engine := availability.NewEngine(db, catalog, logger, availability.Options{
		SlotStep:        cfg.SlotStep(),
		DefaultPageSize: cfg.DefaultPageSize(),
	})
	pipeline := reservation.NewPipeline(db, bus, logger, reservation.WithTimeout(cfg.CommitTimeout()))

	rps, burst := cfg.RateLimit()
	limiter := api.NewTenantLimiter(rps, burst)
	server := api.NewServer(engine, pipeline, limiter, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := config.NewWatcher(configPath, 30*time.Second, &logger, func(updated *config.Config) {
		rps, burst := updated.RateLimit()
		limiter.SetLimit(rps, burst)
		logger.Info().Float64("rps", rps).Int("burst", burst).Msg("rate limit applied")
	})
	if err := watcher.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}
	go cleanupLimiter(ctx, limiter)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backups := database.NewBackupService(db, cfg.Backup, cfg.BackupInterval(), &logger)
	go backups.Start(ctx)

	logger.Info().Str("driver", db.Driver()).Msg("Availability engine started")
	if err := server.ListenAndServe(ctx, cfg.API.Port); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func subscribe(bus *events.EventBus, db *database.DB, logger *zerolog.Logger) {
	log := func(event events.Event) error {
		logger.Debug().
			Str("type", event.Type).
			Str("tenant_id", event.TenantID).
			Str("reservation_id", event.ReservationID).
			RawJSON("payload", event.Payload).
			Msg("reservation event")
		return nil
	}
	for _, eventType := range []string{events.ReservationCommitted, events.ReservationRejected, events.ReservationStatusChanged} {
		bus.Subscribe(eventType, log)
		bus.Subscribe(eventType, db.RecordEvent)
	}
}

func cleanupLimiter(ctx context.Context, limiter *api.TenantLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(30 * time.Minute)
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
