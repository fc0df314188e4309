// Package storage selects and opens the record store backing the Persister.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/storage/memory"
	"github.com/JonMunkholm/strata/internal/storage/postgres"
	"github.com/JonMunkholm/strata/internal/storage/sqlite"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a record store: core.Storage plus reads and lifecycle.
type Store interface {
	core.Storage
	Get(ctx context.Context, collection, id string) (core.PersistedRecord, error)
	List(ctx context.Context, collection string, limit int) ([]core.PersistedRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Options selects and tunes a store.
type Options struct {
	Driver          string
	URL             string // postgres connection string
	Path            string // sqlite file
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	Logger          *slog.Logger
}

// Open returns the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch driver := strings.ToLower(strings.TrimSpace(opts.Driver)); driver {
	case DriverMemory, "":
		logger.Warn("using in-memory store; records are lost on exit")
		return memory.New(), nil

	case DriverPostgres:
		if opts.URL == "" {
			return nil, fmt.Errorf("postgres driver requires a database URL")
		}
		s, err := postgres.Open(ctx, opts.URL, postgres.PoolConfig{
			MaxConns:        opts.MaxConns,
			MinConns:        opts.MinConns,
			MaxConnLifetime: opts.MaxConnLifetime,
			MaxConnIdleTime: opts.MaxConnIdleTime,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres store")
		return s, nil

	case DriverSQLite:
		s, err := sqlite.Open(opts.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", "path", opts.Path)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (want %s, %s or %s)", driver, DriverMemory, DriverPostgres, DriverSQLite)
	}
}
