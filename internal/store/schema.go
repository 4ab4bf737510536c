// internal/store/schema.go
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var (
	//go:embed schema/postgres.sql
	postgresSchema string

	//go:embed schema/sqlite.sql
	sqliteSchema string
)

// Schema returns the DDL for a dialect. Every statement is idempotent.
func Schema(d Dialect) (string, error) {
	switch d {
	case DialectPostgres:
		return postgresSchema, nil
	case DialectSQLite:
		return sqliteSchema, nil
	}
	return "", fmt.Errorf("unknown dialect %q", d)
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	ddl, err := Schema(d)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s schema: %w", d, err)
	}
	return nil
}

func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	return EnsureSchema(ctx, db, DialectSQLite)
}
