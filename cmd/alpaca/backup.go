package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"alpaca/internal/backup"
	"alpaca/internal/config"
	"alpaca/internal/storage"
)

func newBackupCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, restore and schedule database backups",
	}
	cmd.AddCommand(
		newBackupCreateCmd(cfg),
		newBackupRestoreCmd(cfg),
		newBackupInfoCmd(cfg),
		newBackupScheduleCmd(cfg),
	)
	return cmd
}

func newBackupCreateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create <dest.db>",
		Short: "Write a backup of the database to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open once so a fresh install gets its schema before the
			// backup reads it.
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			store.Close()

			return backup.New(cfg.DBPath).Create(cmd.Context(), args[0])
		},
	}
}

func newBackupRestoreCmd(cfg *config.Config) *cobra.Command {
	var modeStr string
	cmd := &cobra.Command{
		Use:   "restore <src.db>",
		Short: "Restore the database from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return backup.New(cfg.DBPath).Restore(cmd.Context(), args[0], backup.Mode(modeStr))
		},
	}
	cmd.Flags().StringVar(&modeStr, "mode", string(backup.ModeReplace), "replace or merge")
	return cmd
}

func newBackupInfoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.db>",
		Short: "Describe a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := backup.New(cfg.DBPath).Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d bytes, created %s)\n", info.Path, info.SizeBytes, info.CreatedAt.Format("2006/01/02 15:04:05"))
			for _, t := range info.Tables {
				fmt.Printf("  %s\t%d rows\n", t.Name, t.Rows)
			}
			return nil
		},
	}
}

func newBackupScheduleCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage automatic backup schedules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <interval-hours> <dest-dir>",
		Short: "Add a backup schedule writing timestamped files under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.Atoi(args[0])
			if err != nil || hours <= 0 {
				return fmt.Errorf("interval must be a positive number of hours")
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sch := storage.BackupSchedule{
				ID:            storage.NewID(),
				IntervalHours: hours,
				BackupPath:    args[1],
				Enabled:       true,
			}
			if err := store.UpsertBackupSchedule(cmd.Context(), sch); err != nil {
				return err
			}
			fmt.Println(sch.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backup schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			schedules, err := store.ListBackupSchedules(cmd.Context(), false)
			if err != nil {
				return err
			}
			for _, sch := range schedules {
				state := "disabled"
				if sch.Enabled {
					state = "enabled"
				}
				last := "never"
				if sch.LastBackup != nil {
					last = *sch.LastBackup
				}
				fmt.Printf("%s\tevery %dh\t%s\t%s\tlast: %s\n", sch.ID, sch.IntervalHours, sch.BackupPath, state, last)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable <schedule-id>",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.SetScheduleEnabled(cmd.Context(), args[0], true)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <schedule-id>",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.SetScheduleEnabled(cmd.Context(), args[0], false)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <schedule-id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteBackupSchedule(cmd.Context(), args[0])
		},
	})

	return cmd
}
