// Command dx-authd is the development authentication backend of doc-extract.
//
// Configuration is read from DX_AUTHD_* environment variables.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ieazie/doc-extract/internal/config"
	"github.com/ieazie/doc-extract/internal/limiter"
	"github.com/ieazie/doc-extract/internal/migrate"
	"github.com/ieazie/doc-extract/internal/repository/postgres"
	"github.com/ieazie/doc-extract/internal/server/httpapi"
	"github.com/ieazie/doc-extract/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Server, logger *zap.Logger) error {
	if cfg.MigrateOnStart {
		n, err := migrate.Up(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int("count", n))
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	tenants := postgres.NewTenantRepo(db)
	lim := limiter.NewPG(db.Pool, limiter.Config{
		Window:   cfg.LimiterWindow,
		MaxFails: cfg.LimiterMaxFails,
		BlockFor: cfg.LimiterBlock,
	})

	authSvc := service.NewAuthService(users, tenants, lim, service.Options{
		SignKey:       []byte(cfg.JWTSecret),
		AccessTTL:     cfg.TokenTTL,
		LimiterPepper: cfg.LimiterPepper,
	})

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, authSvc, cfg.SeedFile, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.New(authSvc, httpapi.Options{
			Logger:    logger,
			Registry:  reg,
			Readiness: func(r *http.Request) error { return db.Ping(r.Context()) },
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func applySeed(ctx context.Context, svc *service.AuthServiceImpl, path string, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	seed, err := service.ParseSeed(f)
	if err != nil {
		return err
	}
	st, err := svc.ApplySeed(ctx, seed)
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	logger.Info("seed applied",
		zap.Int("tenants", st.Tenants),
		zap.Int("users", st.Users),
		zap.Int("memberships", st.Memberships),
		zap.Int("skipped", st.Skipped),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
