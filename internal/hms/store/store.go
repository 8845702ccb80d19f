package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/hms/internal/hms/store/drivers/postgres"
	"github.com/aussiebroadwan/hms/internal/hms/store/drivers/redis"
	"github.com/aussiebroadwan/hms/internal/hms/store/drivers/sqlite"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("store: unknown driver")

// Store is the persisted token slot plus the lifecycle hooks every driver has.
type Store interface {
	hmssdk.TokenStore

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
}

// Config selects and configures a driver.
type Config struct {
	Driver string

	// Slot names the stored token, so several profiles can share storage.
	Slot string

	// SQLiteDSN is used by the sqlite driver, e.g. "file:/home/me/.hms/session.db".
	SQLiteDSN string

	// RedisURL is used by the redis driver, e.g. "redis://localhost:6379/0".
	RedisURL    string
	RedisPrefix string

	// PostgresURL is used by the postgres driver, e.g. "postgres://hms@db/hms".
	PostgresURL string
}

// Open creates the configured store and makes sure it is usable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Driver {
	case DriverMemory, "":
		s = &memoryStore{MemoryStore: hmssdk.NewMemoryStore()}
	case DriverSQLite:
		var sq *sqlite.Store
		sq, err = sqlite.NewStore(cfg.SQLiteDSN, cfg.Slot)
		if err == nil {
			if err = sq.ApplyMigrations(); err != nil {
				_ = sq.Close()
				err = fmt.Errorf("apply migrations: %w", err)
			}
		}
		s = sq
	case DriverRedis:
		s, err = redis.NewStoreFromURL(cfg.RedisURL, cfg.RedisPrefix, cfg.Slot)
	case DriverPostgres:
		var pg *postgres.Store
		pg, err = postgres.NewStore(ctx, cfg.PostgresURL, cfg.Slot)
		if err == nil {
			if err = pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				err = fmt.Errorf("ensure schema: %w", err)
			}
		}
		s = pg
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}

	return s, nil
}

// memoryStore adapts hmssdk.MemoryStore to Store.
type memoryStore struct {
	*hmssdk.MemoryStore
}

func (memoryStore) Close() error                 { return nil }
func (memoryStore) Ping(_ context.Context) error { return nil }
