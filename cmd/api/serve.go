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

	"civicboard/api/internal/app"
	"civicboard/api/internal/archive"
	"civicboard/api/internal/config"
	"civicboard/api/internal/governance"
	"civicboard/api/internal/metrics"
	"civicboard/api/internal/rbac"
	"civicboard/api/internal/session"
	"civicboard/api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd)
		},
	}
}

func serveRun(cmd *cobra.Command) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "civicboard"),
	)
	m := metrics.New(reg)

	dataStore := store.NewPostgresStore(db)
	resolver := rbac.NewResolver(dataStore, dataStore, dataStore)
	governanceService := governance.New(dataStore, app.ObserveAuthorizer(resolver, m), logger.Named("governance"))

	deps := app.Deps{
		DB:         dataStore,
		Governance: governanceService,
		Metrics:    m,
		Logger:     logger,
	}

	if cfg.RedisURL != "" {
		revocations, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer revocations.Close()
		deps.Revocations = revocations
		logger.Info("token revocation enabled")
	} else {
		logger.Warn("REDIS_URL not set; logout is disabled")
	}

	if cfg.MinioURL != "" {
		packets, err := archive.New(ctx, archiveOptions(cfg), logger.Named("archive"))
		if err != nil {
			return fmt.Errorf("packet archive unavailable: %w", err)
		}
		deps.Archive = packets
	}

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin,
		app.WithLogger(logger.Named("http")),
		app.WithMetrics(m, reg),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("civicboard API listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func archiveOptions(cfg config.Config) archive.Options {
	return archive.Options{
		Endpoint: cfg.MinioURL,
		User:     cfg.MinioUser,
		Password: cfg.MinioPassword,
		Bucket:   cfg.MinioBucket,
		Secure:   cfg.MinioSecure,
	}
}
