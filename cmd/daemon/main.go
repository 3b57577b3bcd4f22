// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamforge/provisiond/internal/alert"
	"github.com/streamforge/provisiond/internal/api"
	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/engine"
	pslog "github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/notify"
	"github.com/streamforge/provisiond/internal/provision"
	"github.com/streamforge/provisiond/internal/reconcile"
	"github.com/streamforge/provisiond/internal/store"
	"github.com/streamforge/provisiond/internal/telemetry"
	"github.com/streamforge/provisiond/internal/version"
	"github.com/streamforge/provisiond/internal/worker"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger := pslog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Msg("failed to load configuration")
	}

	pslog.Configure(pslog.Config{
		Level:   cfg.LogLevel,
		Service: "provisiond",
	})
	logger := pslog.WithComponent("daemon")
	logger.Info().
		Str("event", "config.loaded").
		Str("store_backend", cfg.StoreBackend).
		Str("listen_addr", cfg.ListenAddr).
		Msg("loaded configuration from environment")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := pslog.WithComponent("daemon")

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "provisiond",
		ServiceVersion: version.Version,
		Environment:    config.ParseString("ENVIRONMENT", "production"),
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	repo, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn().Err(err).Msg("metadata store close failed")
		}
	}()

	publisher, healthChecks, err := openPublisher(cfg)
	if err != nil {
		return fmt.Errorf("connect notification broker: %w", err)
	}

	if cfg.EngineBaseURL == "" {
		return errors.New("ENGINE_BASE_URL is required")
	}
	eng := engine.NewHTTPClient(cfg.EngineBaseURL, cfg.EngineTimeout)

	sink := alert.NewLogSink()
	prov := provision.New(repo, eng, cfg)
	wrk := worker.New(prov, publisher, sink, cfg)
	rec := reconcile.New(repo, prov, publisher, sink, cfg)
	server := api.NewServer(cfg, wrk, prov, repo, healthChecks...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func openRepository(cfg *config.Config) (store.Repository, error) {
	var (
		repo store.Repository
		err  error
	)
	switch cfg.StoreBackend {
	case "badger":
		repo, err = store.OpenBadgerStore(filepath.Join(cfg.StorePath, "channels"))
	case "sqlite":
		repo, err = store.OpenSQLiteStore(filepath.Join(cfg.StorePath, "channels.db"))
	case "memory":
		repo = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	return store.NewInstrumentedStore(repo, cfg.StoreBackend), nil
}

func openPublisher(cfg *config.Config) (notify.Publisher, []api.HealthChecker, error) {
	if cfg.RedisAddr == "" {
		logger := pslog.WithComponent("daemon")
		logger.Warn().Msg("REDIS_ADDR not set, playback-ready notifications go to the log only")
		return notify.NewLogPublisher(), nil, nil
	}
	pub, err := notify.NewRedisPublisher(notify.RedisConfig{
		Addr:    cfg.RedisAddr,
		Channel: cfg.RedisChannel,
	})
	if err != nil {
		return nil, nil, err
	}
	return pub, []api.HealthChecker{pub}, nil
}
