// internal/common/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"offer-estimation/internal/common/config"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens a local SQLite file for offline estimation runs. SQLite
// allows one writer, so the pool is capped at a single connection.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig) (*sql.DB, error) {
	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", cfg.Path, err)
	}
	return db, nil
}
