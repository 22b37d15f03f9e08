package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// TimeLayout is the canonical timestamp format for every DATETIME column.
// Fixed-width and zero-padded, so lexical order equals chronological order.
const TimeLayout = "2006/01/02 15:04:05"

// nowFunc is swapped out in tests that need a fixed clock.
var nowFunc = time.Now

func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Store wraps the SQLite database file backing all chats, instances,
// prompts, bookmarks, pins, statistics and backup schedules.
type Store struct {
	db   *sql.DB
	path string
	sql  sq.StatementBuilderType
}

// Open opens (or creates) the database at path and runs any pending
// schema migrations. Migrations are ordered and idempotent, so Open is
// safe to call on an already-migrated database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite allows a single writer; a second pooled connection only
	// buys SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:   db,
		path: path,
		sql:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) DB() *sql.DB {
	return s.db
}
