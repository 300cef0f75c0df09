package sqlite

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/louisbranch/gamestate/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned/codec"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed versioned object store.
type Store struct {
	sqlDB     *sql.DB
	cfg       Config
	schemas   *codec.Registry
	registry  *txRegistry
	telemetry *telemetry
}

// Open opens and migrates the object store described by cfg. Zero timeouts
// and pool size take their documented defaults.
func Open(ctx context.Context, cfg Config, schemas *codec.Registry, opts ...Option) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "invalid store config", err)
	}
	if schemas == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "schema registry is required")
	}
	cfg.Path = filepath.Clean(cfg.Path)

	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	tel, err := newTelemetry(o)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "create store telemetry", err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "open sqlite db", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "ping sqlite db", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.ObjectsFS, "objects"); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "run migrations", err)
	}

	return &Store{
		sqlDB:     sqlDB,
		cfg:       cfg,
		schemas:   schemas,
		registry:  newTxRegistry(),
		telemetry: tel,
	}, nil
}

// Close rolls back every transaction still open, then closes the database.
// Executions still running on those transactions fail.
//
// Close is nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	for _, t := range s.registry.shutdown() {
		log.Printf("force rollback of open transaction %s", t)
		t.close()
	}
	return s.sqlDB.Close()
}

// OpenTransactions reports how many transactions are currently open.
func (s *Store) OpenTransactions() int {
	if s == nil || s.registry == nil {
		return 0
	}
	return s.registry.len()
}
