// Package bootstrap wires the sync service from configuration for the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/workoutcache/internal/config"
	"example.com/workoutcache/internal/domain"
	"example.com/workoutcache/internal/events"
	"example.com/workoutcache/internal/persistence/file"
	"example.com/workoutcache/internal/persistence/postgres"
	"example.com/workoutcache/internal/upstream"
)

// Deps holds the wired service and everything that must be released on shutdown.
type Deps struct {
	Service *domain.Service
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

type collectionStore interface {
	domain.Store
	domain.BlobStore
}

// Build selects the cache backend, the upstream client and the optional Kafka publisher.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Deps, error) {
	deps := &Deps{}

	var store collectionStore
	switch cfg.CacheBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)

		repo := postgres.NewRepository(pool, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = repo
	default:
		fs, err := file.NewStore(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Timeout: cfg.UpstreamTimeout,
	})

	opts := []domain.Option{
		domain.WithLogger(logger),
		domain.WithFetcherConfig(domain.FetcherConfig{
			MaxPages:    cfg.SyncMaxPages,
			PageTimeout: cfg.UpstreamPageTimeout,
		}),
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SyncEventsTopic)
		deps.closers = append(deps.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka publisher close failed", zap.Error(err))
			}
		})
		opts = append(opts, domain.WithPublisher(publisher))
		logger.Info("sync events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", publisher.Topic()))
	}

	deps.Service = domain.NewService(store, store, client, opts...)
	return deps, nil
}
