package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/crypto"
	"alpaca/internal/storage"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log.Level)

	root := &cobra.Command{
		Use:     "alpaca",
		Short:   "Alpaca — local chat data store",
		Version: version,
	}
	root.AddCommand(
		newInitCmd(cfg),
		newChatsCmd(cfg),
		newSearchCmd(cfg),
		newStatsCmd(cfg),
		newExportCmd(cfg),
		newImportCmd(cfg),
		newBackupCmd(cfg),
		newInstancesCmd(cfg),
		newLibraryCmd(cfg),
		newServeCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newInitCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			store, err := storage.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Printf("database ready at %s\n", cfg.DBPath)
			return nil
		},
	}
}

// openStore opens the database for a CLI command, creating the data
// directory on first use.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return storage.Open(ctx, cfg.DBPath)
}

// cryptoManager returns a sealing manager when master keys are
// configured, nil otherwise.
func cryptoManager(cfg *config.Config) (*crypto.Manager, error) {
	if len(cfg.Crypto.Keys) == 0 {
		return nil, nil
	}
	return crypto.NewManager(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
