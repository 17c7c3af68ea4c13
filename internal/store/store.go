// Package store persists users, datasets, saved analyses and sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("already exists")
)

// DefaultDatabaseURL is used when no database is configured.
const DefaultDatabaseURL = "sqlite:///vizion.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store is the relational store backing the application.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// ParseDatabaseURL maps a database URL to a SQLite data source name.
// Accepted forms: sqlite:///relative.db, sqlite:////abs/path.db, sqlite://
// (in-memory), :memory:, file: URIs and bare paths.
func ParseDatabaseURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return ParseDatabaseURL(DefaultDatabaseURL)
	case url == ":memory:", url == "sqlite://", url == "sqlite:///:memory:":
		return ":memory:", nil
	case strings.HasPrefix(url, "sqlite:///"):
		return strings.TrimPrefix(url, "sqlite:///"), nil
	case strings.HasPrefix(url, "file:"):
		return url, nil
	case strings.Contains(url, "://"):
		return "", fmt.Errorf("unsupported database url %q: only sqlite is available", url)
	}
	return url, nil
}

// Open connects to the database named by url and creates the schema if missing.
func Open(ctx context.Context, url string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn, err := ParseDatabaseURL(url)
	if err != nil {
		return nil, err
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps pragmas and in-memory databases consistent
	db.SetMaxOpenConns(1)
	s := &Store{db: db, log: log}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("database ready", zap.String("dsn", dsn))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	uploaded_at TEXT NOT NULL,
	row_count INTEGER,
	column_count INTEGER,
	status TEXT DEFAULT 'Uploaded'
);
CREATE INDEX IF NOT EXISTS idx_datasets_user ON datasets(user_id);

CREATE TABLE IF NOT EXISTS analysis_history (
	id TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL,
	summary TEXT,
	insights TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_user ON analysis_history(user_id, created_at);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// migration adds a column to a table created by an older schema.
type migration struct {
	Table  string
	Column string
	Def    string
}

var migrations = []migration{
	{"datasets", "status", "TEXT DEFAULT 'Uploaded'"},
	{"datasets", "row_count", "INTEGER"},
	{"datasets", "column_count", "INTEGER"},
	{"analysis_history", "insights", "TEXT"},
}

func (s *Store) init(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("set %s: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, m := range migrations {
		ok, err := s.columnExists(ctx, m.Table, m.Column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.Table, m.Column, err)
		}
		s.log.Info("migration applied", zap.String("table", m.Table), zap.String("column", m.Column))
	}
	return nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("inspect %s: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
