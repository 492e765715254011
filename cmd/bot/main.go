package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stiralka/internal/booking"
	"stiralka/internal/bot"
	"stiralka/internal/config"
	"stiralka/internal/db"
	"stiralka/internal/metrics"
	"stiralka/internal/reset"
	"stiralka/internal/state"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("STIRALKA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	sessions := buildSessionStore(cfg, &logger, &rdb)

	flow := booking.New(database, database, sessions)

	limits := bot.Limits{
		MessagesPerMinute: cfg.Limits.MessagesPerMinute,
		Burst:             cfg.Limits.Burst,
	}
	b, err := bot.New(cfg.Telegram.BotToken, flow, database, cfg.Admins, limits, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resetCfg := reset.Config{
		Timezone:      cfg.Reset.Timezone,
		CheckInterval: cfg.ResetCheckInterval(),
	}
	if resetCfg.Timezone == "" {
		resetCfg.Timezone = reset.DefaultConfig().Timezone
	}
	scheduler, err := reset.NewScheduler(resetCfg, database, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create reset scheduler error")
	}
	go scheduler.Start(ctx)

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, cfg, database, &logger)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("laundry bot started")
	b.Start(ctx)
}

func buildSessionStore(cfg *config.Config, logger *zerolog.Logger, rdbOut **redis.Client) state.Repository {
	memory := state.NewMemoryRepository(cfg.SessionTTL())
	if cfg.Redis.Address == "" {
		return memory
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	*rdbOut = rdb
	primary := state.NewRedisRepository(rdb, cfg.SessionTTL())
	return state.NewFailoverRepository(primary, memory, logger)
}

func startBackupLoop(ctx context.Context, cfg *config.Config, database *db.DB, logger *zerolog.Logger) {
	dir := cfg.Backup.Dir
	if dir == "" {
		dir = "backups"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("create backup dir error")
		return
	}

	run := func() {
		dest := filepath.Join(dir, fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405")))
		if err := database.Backup(dest); err != nil {
			logger.Error().Err(err).Msg("backup error")
			return
		}
		deleted, err := database.CleanupBackups(dir, cfg.BackupRetention())
		if err != nil {
			logger.Error().Err(err).Msg("backup cleanup error")
			return
		}
		logger.Info().Str("file", dest).Int("deleted", deleted).Msg("backup done")
	}

	run()
	ticker := time.NewTicker(cfg.BackupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
