package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *Store) UpsertBackupSchedule(ctx context.Context, sch BackupSchedule) error {
	q := s.sql.Insert("backup_schedule").
		Columns("id", "interval_hours", "backup_path", "last_backup", "enabled").
		Values(sch.ID, sch.IntervalHours, sch.BackupPath, sch.LastBackup, sch.Enabled).
		Suffix("ON CONFLICT(id) DO UPDATE SET interval_hours=excluded.interval_hours, backup_path=excluded.backup_path, enabled=excluded.enabled")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build schedule upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert backup schedule: %w", err)
	}
	return nil
}

// ListBackupSchedules returns schedules, all of them or only enabled
// ones.
func (s *Store) ListBackupSchedules(ctx context.Context, enabledOnly bool) ([]BackupSchedule, error) {
	sqlStr := "SELECT id, interval_hours, backup_path, last_backup, enabled FROM backup_schedule"
	if enabledOnly {
		sqlStr += " WHERE enabled = 1"
	}
	sqlStr += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("list backup schedules: %w", err)
	}
	defer rows.Close()

	out := make([]BackupSchedule, 0)
	for rows.Next() {
		var sch BackupSchedule
		var last sql.NullString
		if err := rows.Scan(&sch.ID, &sch.IntervalHours, &sch.BackupPath, &last, &sch.Enabled); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		if last.Valid {
			sch.LastBackup = &last.String
		}
		out = append(out, sch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule rows: %w", err)
	}
	return out, nil
}

func (s *Store) MarkBackupDone(ctx context.Context, scheduleID, at string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE backup_schedule SET last_backup = ? WHERE id = ?", at, scheduleID)
	if err != nil {
		return fmt.Errorf("mark backup done: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetScheduleEnabled(ctx context.Context, scheduleID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE backup_schedule SET enabled = ? WHERE id = ?", enabled, scheduleID)
	if err != nil {
		return fmt.Errorf("set schedule enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBackupSchedule(ctx context.Context, scheduleID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM backup_schedule WHERE id = ?", scheduleID)
	if err != nil {
		return fmt.Errorf("delete backup schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBackupSchedule returns one schedule by ID.
func (s *Store) GetBackupSchedule(ctx context.Context, scheduleID string) (BackupSchedule, error) {
	var sch BackupSchedule
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, interval_hours, backup_path, last_backup, enabled FROM backup_schedule WHERE id = ?",
		scheduleID).Scan(&sch.ID, &sch.IntervalHours, &sch.BackupPath, &last, &sch.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BackupSchedule{}, ErrNotFound
		}
		return BackupSchedule{}, fmt.Errorf("get backup schedule: %w", err)
	}
	if last.Valid {
		sch.LastBackup = &last.String
	}
	return sch, nil
}
