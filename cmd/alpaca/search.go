package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/search"
)

func newSearchCmd(cfg *config.Config) *cobra.Command {
	var fromStr, toStr string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message content across all chats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dateFrom, dateTo *time.Time
			if fromStr != "" {
				t, err := time.Parse("2006-01-02", fromStr)
				if err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				dateFrom = &t
			}
			if toStr != "" {
				t, err := time.Parse("2006-01-02", toStr)
				if err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				// Make the bound inclusive of the whole day.
				t = t.Add(24*time.Hour - time.Second)
				dateTo = &t
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := search.New(store, cfg.Search.ContextChars)
			results, err := svc.SearchAllChats(cmd.Context(), args[0], dateFrom, dateTo)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%.2f\t%s\t%s\t%s\n", r.Score, r.ChatName, r.DateTime, r.Preview)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromStr, "from", "", "earliest date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "latest date to include (YYYY-MM-DD)")
	return cmd
}
