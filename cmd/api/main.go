package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookcal/internal/api"
	"bookcal/internal/catalog"
	"bookcal/internal/config"
	"bookcal/internal/events"
	"bookcal/internal/logging"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/notify"
	"bookcal/internal/persistence"
	"bookcal/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	cat, err := catalog.New(cfg.Apartments)
	if err != nil {
		return fmt.Errorf("build apartment catalog: %w", err)
	}

	adapter, cleanup, err := buildAdapter(cfg, &logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bus := events.NewEventBus()
	if cfg.Telegram.BotToken != "" {
		notifier, err := notify.New(cfg.Telegram, &logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Telegram notifications disabled")
		} else {
			notifier.Subscribe(bus)
			logger.Info().Msg("Telegram notifications enabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeds := loadSeeds(cfg, &logger)
	st, err := store.New(ctx, adapter, cat, bus, &logger, seeds)
	if err != nil {
		return fmt.Errorf("init booking store: %w", err)
	}

	metrics.Register()
	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewServer(cfg, st, cat, &logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// buildAdapter picks the snapshot backend from config. With failover
// enabled the redis backend degrades to the local file store.
func buildAdapter(cfg *config.Config, logger *zerolog.Logger) (persistence.Adapter, func(), error) {
	switch cfg.Storage.Backend {
	case "file":
		return persistence.NewFileStore(cfg.Storage.FilePath), nil, nil
	case "sqlite":
		s, err := persistence.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		client := persistence.NewRedisClient(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := persistence.Ping(pingCtx, client); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable at startup")
		}
		redisStore := persistence.NewRedisStore(client)
		cleanup := func() { _ = persistence.Close(client) }
		if cfg.Storage.Failover {
			fallback := persistence.NewFileStore(cfg.Storage.FilePath)
			return persistence.NewFailoverStore(redisStore, fallback, logger), cleanup, nil
		}
		return redisStore, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func loadSeeds(cfg *config.Config, logger *zerolog.Logger) []models.BookingForm {
	seeds := make([]models.BookingForm, 0, len(cfg.SeedBookings))
	for _, s := range cfg.SeedBookings {
		form, err := s.Form()
		if err != nil {
			logger.Warn().Err(err).Str("guest", s.GuestName).Msg("Skipping malformed seed booking")
			continue
		}
		seeds = append(seeds, form)
	}
	return seeds
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Monitoring.PrometheusPort).Msg("Prometheus metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
