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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/designer"
	"github.com/ayush/ivr-designer/internal/metrics"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/store"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	// ── Store ────────────────────────────────────────────────
	backend, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close(context.Background())
	if err := store.Migrate(ctx, backend); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	repos := repository.New(backend)

	// ── Sessions ─────────────────────────────────────────────
	var sessions auth.Sessions
	if cfg.RedisAddr != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer rdb.Close()
		sessions = auth.NewRedisSessions(rdb, cfg.SessionTTL)
		logger.Info("using redis sessions", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = auth.NewMemorySessions(cfg.SessionTTL)
		logger.Warn("REDIS_ADDR not set; sessions are kept in memory")
	}

	// ── Metrics ──────────────────────────────────────────────
	collector := metrics.NewCollector("ivr_designer")

	// ── Snapshot archive ─────────────────────────────────────
	svcOpts := []designer.Option{designer.WithMetrics(collector)}
	if cfg.MinioEndpoint != "" {
		archive, err := store.NewMinioArchive(ctx,
			cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio connect: %w", err)
		}
		svcOpts = append(svcOpts, designer.WithArchive(archive))
		logger.Info("flow snapshots enabled", zap.String("bucket", cfg.MinioBucket))
	}

	// ── Handlers ─────────────────────────────────────────────
	svc := designer.NewService(repos, logger, svcOpts...)
	router := newRouter(routerDeps{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		Sessions:       sessions,
		Auth:           auth.NewHandler(repos.Users, sessions, logger),
		Designer:       designer.NewHandler(svc, logger),
		Metrics:        collector,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
