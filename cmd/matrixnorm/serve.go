package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bkv/matrix-normalizer/internal/config"
	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/job"
	"github.com/bkv/matrix-normalizer/internal/logging"
	"github.com/bkv/matrix-normalizer/internal/storage"
	"github.com/bkv/matrix-normalizer/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage_dir", cfg.Storage.Dir,
		"max_concurrent", cfg.Convert.MaxConcurrent,
		"database", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	files, err := storage.NewStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	jobStore, pool, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	svc := convert.NewService(files)
	runner := job.NewRunner(svc, files, jobStore,
		job.NewLimiter(cfg.Convert.MaxConcurrent), cfg.Convert.Timeout)
	server := web.NewServer(cfg, files, svc, runner)

	// Background maintenance runs until shutdown starts.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	go runner.PruneLoop(bgCtx, cfg.Convert.JobRetention, cfg.Storage.CleanInterval)
	go storage.NewCleaner(files, cfg.Storage.Retention, cfg.Storage.CleanInterval).Run(bgCtx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelBg()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight conversions finish before the listener closes.
		if err := runner.Drain(shutdownCtx); err != nil {
			slog.Warn("conversions did not finish in time", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openJobStore picks the job persistence backend. With a database configured
// jobs survive restarts; without one they live in memory.
func openJobStore(ctx context.Context, cfg *config.Config) (job.Store, *pgxpool.Pool, error) {
	if !cfg.Database.Enabled() {
		slog.Info("no database configured, using in-memory job store")
		return job.NewMemoryStore(), nil, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := job.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return store, pool, nil
}
