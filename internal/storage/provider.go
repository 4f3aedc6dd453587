// Package storage selects the session backend named by configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/clock/system"
	"github.com/JakeFAU/salesnav-relay/internal/config"
	"github.com/JakeFAU/salesnav-relay/internal/scrape"
	"github.com/JakeFAU/salesnav-relay/internal/storage/memory"
	"github.com/JakeFAU/salesnav-relay/internal/storage/postgres"
	"github.com/JakeFAU/salesnav-relay/internal/storage/redis"
)

// SessionStore is a scrape.SessionStore that can report its health.
type SessionStore interface {
	scrape.SessionStore
	Ping(ctx context.Context) error
}

// NewSessionStore opens the configured backend. The returned close func is
// never nil.
func NewSessionStore(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (SessionStore, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := system.New()
	switch cfg.Backend {
	case "", config.BackendMemory:
		logger.Warn("using in-memory session store; sessions are lost on restart")
		return memory.NewSessionStore(clock.Now), func() {}, nil
	case config.BackendPostgres:
		store, err := postgres.NewSessionStore(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, nil, err
			}
		}
		logger.Info("postgres session store ready", zap.String("table", cfg.Postgres.Table))
		return store, store.Close, nil
	case config.BackendRedis:
		store, err := redis.NewSessionStore(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       time.Duration(cfg.Redis.TTLSeconds) * time.Second,
			Now:       clock.Now,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis session store ready", zap.String("addr", cfg.Redis.Addr))
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close redis session store", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
