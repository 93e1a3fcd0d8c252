// Command shotpiped runs the published-file registry service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shotpipe/shotpipe/pkg/api"
	"github.com/shotpipe/shotpipe/pkg/config"
	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shotpiped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := observability.ShutdownOTel(sctx, providers, log); err != nil {
			log.WithError(err).Error("otel shutdown failed")
		}
	}()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	store, closeStore, err := buildStore(cfg, metrics)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer closeStore()

	opts := []registry.ServiceOption{}
	if metrics != nil {
		opts = append(opts, registry.WithServiceMetrics(metrics))
	}
	if cfg.Storage.ArchiveEnabled {
		archiver, err := registry.NewS3Archiver(cfg.ArchiveConfig(), log)
		if err != nil {
			return fmt.Errorf("archiver init: %w", err)
		}
		opts = append(opts, registry.WithArchiver(archiver))
	}
	service := registry.NewService(store, log, opts...)

	if cfg.Storage.RetentionSchedule != "" {
		retention, err := registry.NewRetention(store, registry.RetentionConfig{
			Schedule:     cfg.Storage.RetentionSchedule,
			MaxAge:       cfg.Storage.RetentionMaxAge,
			KeepVersions: cfg.Storage.RetentionKeep,
		}, log)
		if err != nil {
			return fmt.Errorf("retention init: %w", err)
		}
		if err := retention.Start(); err != nil {
			return fmt.Errorf("retention start: %w", err)
		}
		defer retention.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.NewServer(service, log, metrics),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("registry listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

// buildStore constructs the configured store, optionally wrapped with the
// redis cache layer.
func buildStore(cfg *config.Config, metrics *observability.Metrics) (registry.Store, func(), error) {
	var store registry.Store
	closer := func() {}

	switch cfg.Storage.Type {
	case "filesystem":
		fs, err := registry.NewFileSystemStore(cfg.Storage.FilesystemRoot)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case "sqlite":
		s, err := registry.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = func() { s.Close() }
	case "postgres":
		s, err := registry.NewPostgresStore(cfg.Storage.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = func() { s.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Storage.CacheEnabled {
		cacheCfg := registry.DefaultCacheConfig()
		cacheCfg.RedisURL = cfg.Storage.RedisURL
		cacheCfg.Password = cfg.Storage.RedisPassword
		cacheCfg.DB = cfg.Storage.RedisDB

		cached, err := registry.NewCachedStore(store, cacheCfg, metrics)
		if err != nil {
			return nil, nil, err
		}
		inner := closer
		closer = func() {
			cached.Close()
			inner()
		}
		store = cached
	}

	return store, closer, nil
}
