package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ieazie/doc-extract/internal/authclient"
	"github.com/ieazie/doc-extract/internal/broadcast"
	"github.com/ieazie/doc-extract/internal/config"
	"github.com/ieazie/doc-extract/internal/repository/postgres"
	"github.com/ieazie/doc-extract/internal/session"
	"github.com/ieazie/doc-extract/internal/storage"
	"github.com/ieazie/doc-extract/internal/storage/file"
	"github.com/ieazie/doc-extract/internal/storage/redisstore"
	"github.com/ieazie/doc-extract/internal/storage/sealed"
)

// manager loads config, opens the store and returns an initialized session manager.
func (a *app) manager(ctx context.Context) (*session.Manager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	if a.log, err = newLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	if a.kv, a.closeKV, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}

	bus := broadcast.New()
	cli, err := authclient.New(cfg.APIBaseURL,
		authclient.WithTimeout(cfg.APITimeout),
		authclient.WithRetry(authclient.RetryConfig{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     8 * cfg.RetryInitialDelay,
		}),
		authclient.WithBus(bus),
		authclient.WithLogger(a.log.Named("authclient")),
	)
	if err != nil {
		return nil, err
	}

	m := session.New(cli, a.kv,
		session.WithBus(bus),
		session.WithLogger(a.log.Named("session")),
		session.WithNavigator(session.NavigatorFunc(func() { a.log.Debug("navigate home") })),
	)
	if err := m.Initialize(ctx); err != nil {
		m.Teardown()
		return nil, err
	}
	a.mgr = m
	return m, nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Teardown()
	}
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil && a.log != nil {
			a.log.Warn("close store", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// openStore builds the storage.KV selected by cfg.StoreKind, sealed when a
// store secret is configured.
func openStore(ctx context.Context, cfg *config.Config) (storage.KV, func() error, error) {
	kv, closeFn, err := openBackend(ctx, cfg)
	if err != nil || cfg.StoreSecret == "" {
		return kv, closeFn, err
	}
	s, err := sealed.New(kv, []byte(cfg.StoreSecret))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.KV, func() error, error) {
	nop := func() error { return nil }
	switch cfg.StoreKind {
	case config.StoreFile:
		return file.New(cfg.StoreDir), nop, nil
	case config.StoreMemory:
		return storage.NewMemory(), nop, nil
	case config.StoreRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return redisstore.New(rc, "", cfg.RedisTTL), rc.Close, nil
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.PostgresDSN, 2)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return postgres.NewKVRepo(db), func() error { db.Close(); return nil }, nil
	}
	return nil, nil, errors.New("unknown store kind " + cfg.StoreKind)
}

// newLogger logs to stderr so command output stays parseable.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
