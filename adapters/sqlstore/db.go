// Package sqlstore persists fraction sets and exported event tables with
// sqlx. The default backend is one sqlite3 file per run; postgres may hold
// many runs in one database.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"jetfakes/internal/errors"
	"jetfakes/internal/migration"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to a database and applies the fraction store schema.
// For sqlite3 the dsn is a file path whose parent directory is created.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.StorageError("failed to create store directory", err)
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported store driver %q", driver))
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.StorageError("failed to connect to fraction store", err)
	}
	if driver == DriverSQLite {
		// a single writer keeps sqlite transactions serialized
		db.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.StorageError("failed to migrate fraction store", err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// openPlainSQLite opens a sqlite file without the fraction schema, for
// event table stores.
func openPlainSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, DriverSQLite, sqliteDSN(path))
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
