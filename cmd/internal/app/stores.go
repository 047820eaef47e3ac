package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"haven/cmd/identity"
	"haven/cmd/internal/auth/session"

	"github.com/dgraph-io/badger/v3"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores holds the user and session stores of one backend plus the
// resources they share. Stores owns those resources.
type Stores struct {
	Backend  string
	Users    identity.Store
	Sessions session.Store

	pool *pgxpool.Pool
	kv   *badger.DB
}

// OpenStores opens the backend selected by cfg.Storage.Backend. For
// postgres it applies migrations first when cfg.Database.Migrate is set.
func OpenStores(ctx context.Context, cfg Config, log *slog.Logger) (*Stores, error) {
	switch cfg.Storage.Backend {
	case BackendPostgres:
		if cfg.Database.Migrate {
			if err := Migrate(ctx, cfg.Database.URL); err != nil {
				return nil, err
			}
			log.Info("db.migrated")
		}

		pool, err := NewDBPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		users, err := identity.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		sessions, err := session.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("store.open", "backend", BackendPostgres)
		return &Stores{Backend: BackendPostgres, Users: users, Sessions: sessions, pool: pool}, nil

	case BackendBadger:
		db, err := OpenBadger(cfg.Storage.Badger, log)
		if err != nil {
			return nil, err
		}
		log.Info("store.open", "backend", BackendBadger, "dir", cfg.Storage.Badger.Dir, "in_memory", cfg.Storage.Badger.InMemory)
		return &Stores{
			Backend:  BackendBadger,
			Users:    identity.NewBadgerStore(db),
			Sessions: session.NewBadgerStore(db),
			kv:       db,
		}, nil

	case BackendMemory:
		log.Warn("store.open", "backend", BackendMemory, "note", "data is lost on restart")
		return &Stores{
			Backend:  BackendMemory,
			Users:    identity.NewMemoryStore(),
			Sessions: session.NewMemoryStore(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrConfig, cfg.Storage.Backend)
	}
}

// Ping reports whether the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	switch {
	case s.pool != nil:
		return PingDB(ctx, s.pool, 2*time.Second)
	case s.kv != nil && s.kv.IsClosed():
		return errors.New("badger is closed")
	default:
		return nil
	}
}

// Close releases the backend resources.
func (s *Stores) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.kv != nil {
		return s.kv.Close()
	}
	return nil
}
