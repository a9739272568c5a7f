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

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldsales/backend/internal/cache"
	"fieldsales/backend/internal/catalog"
	"fieldsales/backend/internal/config"
	"fieldsales/backend/internal/httpapi"
	"fieldsales/backend/internal/report"
	"fieldsales/backend/internal/service"
	"fieldsales/backend/internal/store"
	"fieldsales/backend/internal/store/memory"
	pgstore "fieldsales/backend/internal/store/postgres"
	"fieldsales/backend/internal/store/redisstore"
)

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "fieldsales",
		Short: "Field sales backend: invoice wizard, visits and reports",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded outside production")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), config.Load())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the postgres kv_store table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), config.Load())
			},
		},
	)
	return root
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// backend is the storage selected from configuration plus what must be
// closed on shutdown.
type backend struct {
	kv      store.KV
	redis   *redis.Client
	closers []func() error
}

func (b *backend) close(logger *zap.Logger) {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}
}

// openBackend prefers postgres, then redis, then the in-memory store. A
// configured database that cannot be reached is an error rather than a
// silent fallback.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			logger.Warn("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			b.redis = rs.Client()
			b.kv = rs
			b.closers = append(b.closers, rs.Close)
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			b.close(logger)
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			b.close(logger)
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		b.kv = pg
		b.closers = append(b.closers, pg.Close)
		logger.Info("storage selected", zap.String("kind", "postgres"))
		return b, nil
	}

	if b.kv != nil {
		logger.Info("storage selected", zap.String("kind", "redis"))
		return b, nil
	}

	b.kv = memory.New()
	logger.Info("storage selected", zap.String("kind", "memory"))
	return b, nil
}

func reportCache(b *backend, logger *zap.Logger) cache.ReportCache {
	if b.redis == nil {
		logger.Info("report cache", zap.String("kind", "noop"))
		return cache.NoopReportCache{}
	}
	logger.Info("report cache", zap.String("kind", "redis"))
	return cache.NewRedisReportCache(b.redis)
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	b, err := openBackend(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	handler, err := buildHandler(startCtx, cfg, b, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.LocationTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("field sales backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sig:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// buildHandler seeds the default accounts and assembles the API over b.
func buildHandler(ctx context.Context, cfg config.Config, b *backend, logger *zap.Logger) (http.Handler, error) {
	users := store.NewUsers(b.kv)
	if err := users.SeedDefaultUsers(ctx, cfg.SeedAdminPassword, cfg.SeedRepPassword, logger); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}

	reports := report.NewEngine(reportCache(b, logger), cfg.ReportCacheTTL())
	svc := service.New(b.kv, catalog.NewSeeded(), reports, logger, service.WithLocateTimeout(cfg.LocationTimeout()))
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), users, logger)
	return httpapi.New(svc, auth, cfg.AllowedOrigin, logger).Handler(), nil
}

func migrate(ctx context.Context, cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	logger.Info("kv_store table ready")
	return nil
}
