package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tipgate/tipgate/internal/config"
	"github.com/tipgate/tipgate/internal/engine"
	"github.com/tipgate/tipgate/internal/ingest"
	"github.com/tipgate/tipgate/internal/logging"
	"github.com/tipgate/tipgate/internal/metrics"
	"github.com/tipgate/tipgate/internal/query"
	"github.com/tipgate/tipgate/internal/server"
	"github.com/tipgate/tipgate/internal/store"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "TIPGATE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	entityStore := buildStore(logger.With(slog.String("component", "store_factory")), cfg.Server.Store)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := entityStore.Close(closeCtx); err != nil {
			logger.Error("store shutdown failed", slog.Any("error", err))
		}
	}()

	eng, err := engine.New(engine.Options{
		Store:        entityStore,
		StoreTimeout: cfg.StoreTimeout(),
		Logger:       logger,
		Metrics:      metricsRecorder,
	})
	if err != nil {
		logger.Error("unable to construct engine", slog.Any("error", err))
		os.Exit(1)
	}

	queries, err := query.New(query.Options{
		Engine:          eng,
		DefaultPageSize: cfg.Server.Query.DefaultPageSize,
		MaxPageSize:     cfg.Server.Query.MaxPageSize,
		Logger:          logger,
		Metrics:         metricsRecorder,
	})
	if err != nil {
		logger.Error("unable to construct query service", slog.Any("error", err))
		os.Exit(1)
	}

	if folder := strings.TrimSpace(cfg.Server.Ingest.Folder); folder != "" {
		feed, err := ingest.Watch(ctx, folder, eng, logger)
		if err != nil {
			logger.Error("feed watcher setup failed", slog.Any("error", err))
		} else {
			defer feed.Stop()
		}
	}

	go stalenessSweep(ctx, eng, cfg, logger.With(slog.String("component", "staleness")))

	handlers := server.NewHandlers(queries, eng, metricsRecorder.Handler(), logger)
	handler := server.NewHandler(handlers, cfg.Server.Logging.CorrelationHeader)

	srv, err := server.New(cfg, logger, handler)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildStore(logger *slog.Logger, cfg config.StoreConfig) store.Store {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory entity store")
		}
		return store.NewMemory()
	case "redis":
		redisStore, err := store.NewRedis(store.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: store.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			if logger != nil {
				logger.Error("redis store initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory store")
			}
			return store.NewMemory()
		}
		if logger != nil {
			logger.Info("using redis entity store", slog.String("address", cfg.Redis.Address))
		}
		return redisStore
	default:
		if logger != nil {
			logger.Warn("unsupported store backend, defaulting to memory", slog.String("backend", cfg.Backend))
		}
		return store.NewMemory()
	}
}

// stalenessSweep periodically reports records whose last write exceeds the
// configured age. Reporting only — stale predictions stay served until an
// operator or retention job evicts them.
func stalenessSweep(ctx context.Context, eng *engine.Engine, cfg config.Config, logger *slog.Logger) {
	interval := cfg.StalenessSweepInterval()
	maxAge := cfg.StalenessMaxAge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := eng.ListAll(ctx, "")
			if err != nil {
				logger.Warn("staleness sweep failed", slog.Any("error", err))
				continue
			}
			var stale []int64
			for _, record := range records {
				if eng.IsStale(record, maxAge) {
					stale = append(stale, record.MatchID)
				}
			}
			if len(stale) > 0 {
				logger.Warn("stale predictions detected",
					slog.Int("count", len(stale)),
					slog.Any("match_ids", stale),
					slog.Duration("max_age", maxAge))
			} else {
				logger.Debug("staleness sweep clean", slog.Int("records", len(records)))
			}
		}
	}
}
