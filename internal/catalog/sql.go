// internal/catalog/sql.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

const maxEntriesPerKey = 20

// SQLLookup reads entries from the catalog_items table. The query uses $n
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQLLookup struct {
	db *sql.DB
}

func NewSQLLookup(db *sql.DB) *SQLLookup {
	return &SQLLookup{db: db}
}

func (s *SQLLookup) Lookup(ctx context.Context, key string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, category, unit, unit_time_minutes, unit_cost
		FROM catalog_items
		WHERE lookup_key = $1 AND is_active = TRUE
		ORDER BY priority DESC, code
		LIMIT $2`, key, maxEntriesPerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrLookupFailed, key, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Code, &e.Name, &e.Category, &e.Unit, &e.UnitTimeMinutes, &e.UnitCost); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrLookupFailed, key, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows %s: %v", ErrLookupFailed, key, err)
	}
	return out, nil
}
