// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/learning"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrCalculationSave = errors.New("CALCULATION_SAVE_FAILED")
	ErrTemplateQuery   = errors.New("TEMPLATE_QUERY_FAILED")
	ErrProjectSave     = errors.New("PROJECT_SAVE_FAILED")
)

const pgUniqueViolation = "23505"

// SQLStore keeps calculations, feedback, adjustments, completed projects and
// offer text templates in one database. Queries use $n placeholders and
// plain column types, so the same statements run on PostgreSQL and SQLite.
type SQLStore struct {
	db           *sql.DB
	logger       logger.Logger
	queryTimeout time.Duration
}

var _ learning.Store = (*SQLStore)(nil)

type Option func(*SQLStore)

// WithQueryTimeout bounds every statement. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *SQLStore) { s.queryTimeout = d }
}

func New(db *sql.DB, log logger.Logger, opts ...Option) *SQLStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &SQLStore{
		db:           db,
		logger:       log.WithFields(map[string]interface{}{"component": "store"}),
		queryTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// isUniqueViolation recognizes unique constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

// unmarshalJSON leaves v untouched for NULL or empty columns.
func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
