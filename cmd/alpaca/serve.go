package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"alpaca/internal/backup"
	"alpaca/internal/config"
)

// newServeCmd runs the long-lived mode: the backup scheduler plus an
// HTTP endpoint exposing health and metrics.
func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backup scheduler with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info().Str("db", cfg.DBPath).Msg("starting alpaca serve")

			errCh := make(chan error, 2)

			scheduler := backup.NewScheduler(backup.SchedulerConfig{
				Store:        store,
				Service:      backup.New(cfg.DBPath),
				PollInterval: cfg.Scheduler.PollInterval,
				Logger:       log.Logger,
			})
			go func() {
				if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
					errCh <- fmt.Errorf("scheduler failed: %w", err)
				}
			}()
			log.Info().Dur("poll_interval", cfg.Scheduler.PollInterval).Msg("backup scheduler started")

			mux := http.NewServeMux()
			mux.HandleFunc(cfg.HTTP.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			mux.Handle(cfg.HTTP.MetricsPath, promhttp.Handler())
			httpServer := &http.Server{
				Addr:              cfg.HTTP.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutdown signal received")
			case err := <-errCh:
				log.Error().Err(err).Msg("runtime error")
				cancel()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to stop http server")
			}

			log.Info().Msg("stopped")
			return nil
		},
	}
}
