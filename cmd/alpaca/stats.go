package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/stats"
	"alpaca/internal/tokens"
)

func newStatsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show and manage usage statistics",
	}
	cmd.AddCommand(
		newStatsShowCmd(cfg),
		newStatsTokensCmd(cfg),
		newStatsClearCmd(cfg),
	)
	return cmd
}

func newStatsShowCmd(cfg *config.Config) *cobra.Command {
	var days int
	var model string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Summarize token usage, response times and model usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var since *time.Time
			if days > 0 {
				t := time.Now().AddDate(0, 0, -days)
				since = &t
			}

			svc := stats.New(store)
			usage, err := svc.TokenUsage(cmd.Context(), since, nil)
			if err != nil {
				return err
			}
			times, err := svc.ResponseTimes(cmd.Context(), model, since)
			if err != nil {
				return err
			}
			models, err := svc.ModelUsage(cmd.Context(), since)
			if err != nil {
				return err
			}

			fmt.Printf("tokens: %d total over %d events\n", usage.TotalTokens, usage.EventCount)
			byModel := make([]string, 0, len(usage.ByModel))
			for m := range usage.ByModel {
				byModel = append(byModel, m)
			}
			sort.Strings(byModel)
			for _, m := range byModel {
				fmt.Printf("  %s\t%d\n", m, usage.ByModel[m])
			}
			scope := "all models"
			if times.Model != "" {
				scope = times.Model
			}
			fmt.Printf("response time (%s): avg %.1fms median %.1fms min %dms max %dms (%d samples)\n",
				scope, times.AverageMS, times.MedianMS, times.MinMS, times.MaxMS, times.Count)
			fmt.Println("model usage:")
			for _, mc := range models {
				fmt.Printf("  %s\t%d\n", mc.Model, mc.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "only include the last N days (0 = all)")
	cmd.Flags().StringVar(&model, "model", "", "only include response times for this model")
	return cmd
}

func newStatsTokensCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <chat-id>",
		Short: "Estimate token usage for a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			usage, err := tokens.EstimateChat(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("messages: %d\nuser tokens: %d\nassistant tokens: %d\ntotal tokens: %d\n",
				usage.MessageCount, usage.UserTokens, usage.AssistantTokens, usage.TotalTokens)
			return nil
		},
	}
}

func newStatsClearCmd(cfg *config.Config) *cobra.Command {
	var beforeStr string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var before *time.Time
			if beforeStr != "" {
				t, err := time.Parse("2006-01-02", beforeStr)
				if err != nil {
					return fmt.Errorf("parse --before: %w", err)
				}
				before = &t
			}
			removed, err := stats.New(store).Clear(cmd.Context(), before)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d rows\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&beforeStr, "before", "", "only clear rows before this date (YYYY-MM-DD)")
	return cmd
}
