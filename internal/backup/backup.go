// Package backup creates and restores standalone copies of the
// application database. Backups are plain SQLite files holding the
// data tables only, so any SQLite tool can inspect them.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"alpaca/internal/metrics"
)

// Mode selects how Restore merges the backup into the live database.
type Mode string

const (
	// ModeReplace swaps the live database file for the backup,
	// snapshotting the current file first.
	ModeReplace Mode = "replace"
	// ModeMerge copies backup rows into the live database, keeping the
	// live row wherever IDs collide.
	ModeMerge Mode = "merge"
)

// PreRestoreSuffix is appended to the live database path when Restore
// snapshots it before a replace.
const PreRestoreSuffix = ".pre-restore-backup"

// Service operates on the database file directly. Every call opens its
// own connections, so a replace-mode restore never races a held
// handle.
type Service struct {
	dbPath string
}

func New(dbPath string) *Service {
	return &Service{dbPath: dbPath}
}

// Create writes a backup of the live database to destPath. The
// migration bookkeeping table is not carried over; restoring into a
// fresh database re-runs migrations instead.
func (s *Service) Create(ctx context.Context, destPath string) error {
	if err := s.create(ctx, destPath); err != nil {
		metrics.Global().BackupFailures.Inc()
		return err
	}
	metrics.Global().BackupsTotal.Inc()
	log.Info().Str("dest", destPath).Msg("backup created")
	return nil
}

func (s *Service) create(ctx context.Context, destPath string) error {
	// A stale file at the destination would make the CREATE TABLE
	// statements fail.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale backup file: %w", err)
	}

	src, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open source db: %w", err)
	}
	defer src.Close()
	src.SetMaxOpenConns(1)

	conn, err := src.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin source connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS backup", destPath); err != nil {
		return fmt.Errorf("attach backup db: %w", err)
	}
	defer conn.ExecContext(ctx, "DETACH DATABASE backup")

	tables, err := dataTables(ctx, conn, "main")
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin backup: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		var createSQL string
		if err := tx.QueryRowContext(ctx,
			"SELECT sql FROM main.sqlite_master WHERE type='table' AND name = ?", t.name).Scan(&createSQL); err != nil {
			return fmt.Errorf("read schema for %s: %w", t.name, err)
		}
		// Re-point the CREATE statement at the attached database. The
		// stored text may carry IF NOT EXISTS from the migrations.
		createSQL = strings.Replace(createSQL, "CREATE TABLE IF NOT EXISTS ", "CREATE TABLE ", 1)
		createSQL = strings.Replace(createSQL, "CREATE TABLE ", "CREATE TABLE backup.", 1)
		if _, err := tx.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("create backup table %s: %w", t.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO backup.%s SELECT * FROM main.%s", t.name, t.name)); err != nil {
			return fmt.Errorf("copy table %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit backup: %w", err)
	}
	return nil
}

// Restore brings backup data at srcPath into the live database. In
// replace mode the live file is first snapshotted next to itself with
// PreRestoreSuffix. In merge mode backup rows are inserted and live
// rows win on ID collisions.
func (s *Service) Restore(ctx context.Context, srcPath string, mode Mode) error {
	if err := validateBackup(ctx, srcPath); err != nil {
		return err
	}

	switch mode {
	case ModeReplace:
		return s.restoreReplace(srcPath)
	case ModeMerge:
		return s.restoreMerge(ctx, srcPath)
	default:
		return fmt.Errorf("unknown restore mode %q", mode)
	}
}

func (s *Service) restoreReplace(srcPath string) error {
	if _, err := os.Stat(s.dbPath); err == nil {
		if err := copyFile(s.dbPath, s.dbPath+PreRestoreSuffix); err != nil {
			return fmt.Errorf("snapshot live db: %w", err)
		}
	}
	if err := copyFile(srcPath, s.dbPath); err != nil {
		return fmt.Errorf("replace live db: %w", err)
	}
	log.Info().Str("src", srcPath).Msg("database replaced from backup")
	return nil
}

func (s *Service) restoreMerge(ctx context.Context, srcPath string) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open live db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin live connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS backup", srcPath); err != nil {
		return fmt.Errorf("attach backup db: %w", err)
	}
	defer conn.ExecContext(ctx, "DETACH DATABASE backup")

	tables, err := dataTables(ctx, conn, "backup")
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM main.sqlite_master WHERE type='table' AND name = ?", t.name).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", t.name, err)
		}
		if exists == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO main.%s SELECT * FROM backup.%s", t.name, t.name)); err != nil {
			return fmt.Errorf("merge table %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	log.Info().Str("src", srcPath).Msg("backup merged into database")
	return nil
}

// TableInfo is one table's row count inside a backup file.
type TableInfo struct {
	Name string
	Rows int
}

// Info describes a backup file without modifying anything. CreatedAt
// is the file's modification time.
type Info struct {
	Path      string
	SizeBytes int64
	CreatedAt time.Time
	Tables    []TableInfo
}

func (s *Service) Info(ctx context.Context, path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat backup file: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Info{}, fmt.Errorf("open backup file: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("pin backup connection: %w", err)
	}
	defer conn.Close()

	tables, err := dataTables(ctx, conn, "main")
	if err != nil {
		return Info{}, err
	}

	info := Info{Path: path, SizeBytes: st.Size(), CreatedAt: st.ModTime()}
	for _, t := range tables {
		var n int
		if err := conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)).Scan(&n); err != nil {
			return Info{}, fmt.Errorf("count rows in %s: %w", t.name, err)
		}
		info.Tables = append(info.Tables, TableInfo{Name: t.name, Rows: n})
	}
	return info, nil
}

type table struct {
	name string
}

// dataTables lists user tables in the given schema, skipping SQLite
// internals and the migration bookkeeping table.
func dataTables(ctx context.Context, conn *sql.Conn, schema string) ([]table, error) {
	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%%' AND name != 'goose_db_version' ORDER BY name", schema))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return out, nil
}

func validateBackup(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat backup file: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = 'chat'").Scan(&n); err != nil {
		return fmt.Errorf("inspect backup file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s is not a recognizable backup", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
