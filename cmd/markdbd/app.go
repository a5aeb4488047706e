package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maruel/markdb/internal/auth"
	"github.com/maruel/markdb/internal/cache"
	"github.com/maruel/markdb/internal/config"
	"github.com/maruel/markdb/internal/history"
	"github.com/maruel/markdb/internal/mdv"
	"github.com/maruel/markdb/internal/server/handlers"
	"github.com/maruel/markdb/internal/server/ratelimit"
	"github.com/maruel/markdb/internal/server/reqctx"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/jsonlstore"
	"github.com/maruel/markdb/internal/storage/mongostore"
	"github.com/maruel/markdb/internal/storage/sqlstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const maxRequestBodyBytes = 1 << 20

// app holds everything the router needs and what must be closed on exit.
type app struct {
	svc        *handlers.Services
	handlerCfg *handlers.Config
	limiters   *ratelimit.Config
	registry   *prometheus.Registry
	closers    []func() error
}

// openApp opens the store, the cache, the validator and the history
// described by cfg.
func openApp(ctx context.Context, cfg *config.Config, dataDir, version string) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openStore(ctx, cfg.Storage, dataDir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cl, ok := c.(interface{ Close() error }); ok {
		a.closers = append(a.closers, cl.Close)
	}
	runner := mdv.NewRunner(mdv.Config{
		Path:          cfg.MDV.Path,
		Timeout:       cfg.MDV.Timeout,
		MaxConcurrent: cfg.MDV.MaxConcurrent,
	}, c, mdv.NewMetrics(a.registry))
	if err := runner.Check(); err != nil {
		// Not fatal: the API works except for validation and /api/health
		// reports it.
		slog.WarnContext(ctx, "mdv is not available", "path", cfg.MDV.Path, "err", err)
	}

	secret, err := hex.DecodeString(cfg.Auth.JWTSecret)
	if err != nil {
		secret = []byte(cfg.Auth.JWTSecret)
	}
	a.svc = &handlers.Services{
		Store:     store,
		Validator: runner,
		Tokens:    &auth.Tokens{Secret: secret, TTL: cfg.Auth.TokenTTL},
	}
	if cfg.History.Enabled {
		if a.svc.History, err = history.Open(filepath.Join(dataDir, "history")); err != nil {
			a.Close()
			return nil, err
		}
	}
	trusted, err := reqctx.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handlerCfg = &handlers.Config{
		TrustedProxies:      trusted,
		AdminPassword:       cfg.AdminPassword,
		Version:             version,
		MaxRequestBodyBytes: maxRequestBodyBytes,
		MDVCheck:            runner.Check,
	}
	a.limiters = ratelimit.NewConfig(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.ValidatePerMinute)
	a.closers = append(a.closers, func() error { a.limiters.Close(); return nil })
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("Failed to close", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Storage, dataDir string) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverJSONL:
		s, err := jsonlstore.Open(filepath.Join(dataDir, "db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open jsonl store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, config.DriverMySQL:
		s, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openCache(ctx context.Context, cfg config.Cache) (cache.Cache[mdv.Result], error) {
	switch cfg.Driver {
	case config.CacheMemory:
		return cache.NewMemory[mdv.Result](cfg.Size)
	case config.CacheRedis:
		return cache.NewRedis[mdv.Result](ctx, cfg.RedisURL, cfg.TTL)
	case config.CacheNone:
		return cache.Nop[mdv.Result]{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
