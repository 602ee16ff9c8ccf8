package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chronicle"
	"github.com/aretw0/chronicle/internal/config"
	"github.com/aretw0/chronicle/pkg/adapters/file"
	"github.com/aretw0/chronicle/pkg/adapters/memory"
	redisadapter "github.com/aretw0/chronicle/pkg/adapters/redis"
	"github.com/aretw0/chronicle/pkg/adapters/sqlite"
	"github.com/aretw0/chronicle/pkg/observability"
	"github.com/aretw0/chronicle/pkg/persistence/middleware"
	"github.com/aretw0/chronicle/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Runtime is a fully wired service plus the pieces the commands expose.
type Runtime struct {
	Service    *chronicle.Service
	Subscriber ports.Subscriber
	Metrics    *observability.Metrics

	closers []func() error
}

// Close releases backend connections.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// BuildRuntime wires a service from configuration: the storage backend with
// its change feed, the definition catalog, payload middleware, distributed
// locking on redis, and logging plus metrics hooks.
func BuildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{Metrics: observability.NewMetrics()}
	opts := []chronicle.Option{
		chronicle.WithLogger(logger),
		chronicle.WithLifecycleHooks(observability.CombineHooks(
			observability.LoggingHooks(logger),
			rt.Metrics.Hooks(),
		)),
	}

	repoOpt, err := rt.openRepository(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	opts = append(opts, repoOpt...)

	if cfg.Catalog != "" {
		catalog, err := file.LoadCatalog(cfg.Catalog)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		opts = append(opts, chronicle.WithCatalog(catalog))
	}

	mws, err := buildMiddleware(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if len(mws) > 0 {
		opts = append(opts, chronicle.WithMiddleware(mws...))
	}

	rt.Service = chronicle.New(opts...)
	return rt, nil
}

func (rt *Runtime) openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]chronicle.Option, error) {
	if cfg.Backend == config.BackendRedis {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rt.closers = append(rt.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}

		publisher := redisadapter.NewPublisher(client, cfg.RedisPrefix, logger)
		rt.Subscriber = publisher
		repo := redisadapter.NewFromClient(client,
			redisadapter.WithPrefix(cfg.RedisPrefix),
			redisadapter.WithPublisher(publisher),
			redisadapter.WithLogger(logger),
		)
		return []chronicle.Option{
			chronicle.WithRepository(repo),
			chronicle.WithDistributedLocker(redisadapter.NewLocker(client, cfg.RedisPrefix), cfg.LockTTL),
		}, nil
	}

	broker := memory.NewBroker(memory.WithBrokerLogger(logger))
	rt.Subscriber = broker

	var repo ports.ExecutionRepository
	switch cfg.Backend {
	case config.BackendFile:
		repo = file.NewRepository(cfg.FileDir, file.WithPublisher(broker), file.WithLogger(logger))
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, sqlite.WithPublisher(broker), sqlite.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		rt.closers = append(rt.closers, store.Close)
		repo = store
	default:
		repo = memory.NewRepository(memory.WithPublisher(broker), memory.WithLogger(logger))
	}
	return []chronicle.Option{chronicle.WithRepository(repo)}, nil
}

// buildMiddleware orders masking before encryption so secrets are masked in
// the clear and the masked payload is what gets sealed.
func buildMiddleware(cfg config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.MaskPatterns) > 0 {
		masking, err := middleware.NewMaskingMiddleware(cfg.MaskPatterns)
		if err != nil {
			return nil, fmt.Errorf("masking middleware: %w", err)
		}
		mws = append(mws, masking)
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	if key != nil {
		fallbacks, err := cfg.FallbackKeyBytes()
		if err != nil {
			return nil, err
		}
		encryption, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: fallbacks,
		})
		if err != nil {
			return nil, fmt.Errorf("encryption middleware: %w", err)
		}
		mws = append(mws, encryption)
	}
	return mws, nil
}
