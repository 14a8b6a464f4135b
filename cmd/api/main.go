package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/workoutcache/internal/api"
	"example.com/workoutcache/internal/bootstrap"
	"example.com/workoutcache/internal/config"
	"example.com/workoutcache/internal/domain"
	"example.com/workoutcache/internal/logging"
	httptransport "example.com/workoutcache/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("workout cache stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.UpstreamAPIKey == "" {
		logger.Warn("HEVY_API_KEY is not set, upstream requests will be rejected")
	} else {
		logger.Info("upstream api key loaded", zap.String("api_key", cfg.MaskedAPIKey()))
	}

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer deps.Close()

	// Startup sync runs in the background so cached (or empty) reads are served while upstream is slow or down.
	scheduler := domain.NewScheduler(deps.Service, cfg.SyncInterval, logger)
	go scheduler.Start(ctx)

	handler := api.NewHandler(deps.Service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(logger.Named("http"), httptransport.CORS(cfg.CORSOrigin, mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("workout cache listening", zap.String("address", cfg.HTTPAddress), zap.String("backend", cfg.CacheBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-shutdownCh:
	case err := <-serverErr:
		cancel()
		scheduler.Wait()
		return err
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	scheduler.Wait()
	return nil
}
