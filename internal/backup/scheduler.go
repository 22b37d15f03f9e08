package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"alpaca/internal/storage"
)

// Scheduler polls enabled backup schedules and creates backups whose
// interval has elapsed since their last run.
type Scheduler struct {
	store        *storage.Store
	service      *Service
	pollInterval time.Duration
	logger       zerolog.Logger

	// now is swapped out in tests that need a fixed clock.
	now func() time.Time
}

type SchedulerConfig struct {
	Store        *storage.Store
	Service      *Service
	PollInterval time.Duration
	Logger       zerolog.Logger
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Scheduler{
		store:        cfg.Store,
		service:      cfg.Service,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RunDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error().Err(err).Msg("scheduled backup pass failed")
			}
		}
	}
}

// RunDue executes every enabled schedule whose interval has elapsed.
// Each run gets its own timestamped file under the schedule's
// directory, so earlier backups are never overwritten. A failing
// schedule is logged and does not block the others.
func (s *Scheduler) RunDue(ctx context.Context) error {
	schedules, err := s.store.ListBackupSchedules(ctx, true)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	now := s.now()
	for _, sch := range schedules {
		if !s.due(sch, now) {
			continue
		}
		dest := filepath.Join(sch.BackupPath, scheduledBackupName(now))
		log := s.logger.With().Str("schedule_id", sch.ID).Str("dest", dest).Logger()
		if err := os.MkdirAll(sch.BackupPath, 0o755); err != nil {
			log.Error().Err(err).Msg("backup directory unavailable")
			continue
		}
		if err := s.service.Create(ctx, dest); err != nil {
			log.Error().Err(err).Msg("scheduled backup failed")
			continue
		}
		if err := s.store.MarkBackupDone(ctx, sch.ID, storage.FormatTime(now)); err != nil {
			log.Error().Err(err).Msg("failed to record backup time")
			continue
		}
		log.Info().Msg("scheduled backup completed")
	}
	return nil
}

func scheduledBackupName(now time.Time) string {
	return "alpaca_backup_" + now.Format("20060102_150405") + ".db"
}

func (s *Scheduler) due(sch storage.BackupSchedule, now time.Time) bool {
	if sch.LastBackup == nil {
		return true
	}
	last, err := storage.ParseTime(*sch.LastBackup)
	if err != nil {
		// Unparseable bookkeeping means we cannot tell; run the backup.
		return true
	}
	return now.Sub(last) >= time.Duration(sch.IntervalHours)*time.Hour
}
