package config

import (
	"context"
	"fmt"

	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/internal/tracking"
)

// OpenStore builds the tracking backend named by Driver. The returned close
// function is never nil.
func (s StoreConfig) OpenStore(ctx context.Context, log *logger.Logger) (tracking.Store, func() error, error) {
	noop := func() error { return nil }
	switch s.Driver {
	case "", "memory":
		return tracking.NewMemoryStore(), noop, nil
	case "badger":
		store, err := tracking.OpenBadger(tracking.BadgerConfig{Path: s.BadgerPath, SyncWrites: true, Logger: log})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case "redis":
		store := tracking.NewRedisStore(tracking.RedisConfig{
			Addr:     s.RedisAddr,
			Password: s.RedisPass,
			DB:       s.RedisDB,
			Prefix:   s.KeyPrefix,
			TTL:      s.TTL,
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, noop, fmt.Errorf("redis ping %s: %w", s.RedisAddr, err)
		}
		return store, store.Close, nil
	case "sqlite":
		store, err := tracking.OpenSQLite(ctx, s.DSN)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store driver %q", s.Driver)
	}
}
