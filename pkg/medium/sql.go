package medium

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// SQL is a SQL-backed medium.
// It works with any database/sql compatible driver (SQLite, PostgreSQL, MySQL).
// Requires a table with schema (see Migrate):
//
//	CREATE TABLE minutespa_state (
//	    k VARCHAR(512) PRIMARY KEY,
//	    v TEXT NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
type SQL struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect

	mu     sync.RWMutex
	closed bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite SQLDialect = iota
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
)

// SQLOption configures SQL behavior.
type SQLOption func(*sqlConfig)

type sqlConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name for state storage.
// Default: "minutespa_state".
func WithSQLTableName(name string) SQLOption {
	return func(c *sqlConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectSQLite.
func WithSQLDialect(dialect SQLDialect) SQLOption {
	return func(c *sqlConfig) {
		c.dialect = dialect
	}
}

// NewSQL creates a new SQL-backed medium. The database handle is owned by
// the caller; Close does not close it.
func NewSQL(db *sql.DB, opts ...SQLOption) *SQL {
	cfg := &sqlConfig{
		tableName: "minutespa_state",
		dialect:   DialectSQLite,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQL{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// Migrate creates the state table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	var ts string
	switch s.dialect {
	case DialectPostgreSQL:
		ts = "TIMESTAMP WITH TIME ZONE"
	default:
		ts = "TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			k VARCHAR(512) PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at %s NOT NULL
		)
	`, s.tableName, ts)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQL) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Has reports whether key is stored.
func (s *SQL) Has(ctx context.Context, key string) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}

	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE k = %s`, s.tableName, s.placeholder(1))
	var one int
	err := s.db.QueryRowContext(ctx, query, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value stored under key.
func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}

	query := fmt.Sprintf(`SELECT v FROM %s WHERE k = %s`, s.tableName, s.placeholder(1))
	var v string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key.
func (s *SQL) Set(ctx context.Context, key, value string) error {
	if s.isClosed() {
		return ErrClosed
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (k, v, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (k) DO UPDATE SET
				v = EXCLUDED.v,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (k, v, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				v = VALUES(v),
				updated_at = NOW()
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (k, v, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// Remove deletes key.
func (s *SQL) Remove(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE k = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Keys returns the stored keys with the given prefix, sorted.
func (s *SQL) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	query := fmt.Sprintf(`SELECT k FROM %s ORDER BY k`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Close marks the medium closed. The database handle stays open.
func (s *SQL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
