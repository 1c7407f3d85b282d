// Package database opens a bun.DB for the configured driver.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-repository-query/pkg/config"
)

// dialects maps a driver name to the database/sql driver it registers and the
// bun dialect it speaks.
var dialects = map[string]func() schema.Dialect{
	"sqlite":   func() schema.Dialect { return sqlitedialect.New() },
	"sqlite3":  func() schema.Dialect { return sqlitedialect.New() },
	"postgres": func() schema.Dialect { return pgdialect.New() },
	"pgx":      func() schema.Dialect { return pgdialect.New() },
}

// UnsupportedDriverError reports a driver with no known dialect.
type UnsupportedDriverError struct {
	Driver string
}

func (e *UnsupportedDriverError) Error() string {
	return fmt.Sprintf("database: unsupported driver %q", e.Driver)
}

// Open connects and pings. The caller closes the returned DB.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	dialect, ok := dialects[cfg.Driver]
	if !ok {
		return nil, &UnsupportedDriverError{Driver: cfg.Driver}
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db := bun.NewDB(sqldb, dialect())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}
