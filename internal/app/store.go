package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tierline/tierline/internal/docstore"
	"github.com/tierline/tierline/internal/docstore/memstore"
	"github.com/tierline/tierline/internal/docstore/mongostore"
	"github.com/tierline/tierline/internal/docstore/pgstore"
	"github.com/tierline/tierline/internal/platform/db"
)

// OpenStore connects the configured document store. The returned function
// releases everything OpenStore acquired.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (docstore.Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.DocstoreDriver {
	case DriverMongo:
		store, err := mongostore.New(ctx, mongostore.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect", slog.Any("error", err))
			}
		}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, nil, err
		}
		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case DriverMemory, "":
		store := memstore.New()
		if cfg.DocstoreFixture != "" {
			if err := store.LoadFixtureFile(cfg.DocstoreFixture); err != nil {
				return nil, nil, err
			}
			logger.Info("loaded document fixture", slog.String("path", cfg.DocstoreFixture))
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown document store driver %q", cfg.DocstoreDriver)
	}
}
