package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/export"
	"alpaca/internal/metrics"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	var format, out string
	var includeMetadata bool
	cmd := &cobra.Command{
		Use:   "export <chat-id>",
		Short: "Export a chat as markdown, JSON or a portable database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			switch format {
			case "md", "markdown":
				rendered, err := export.New(store).ToMarkdown(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOut(out, rendered)
			case "json":
				rendered, err := export.New(store).ToJSON(cmd.Context(), args[0], includeMetadata)
				if err != nil {
					return err
				}
				return writeOut(out, rendered)
			case "db":
				if out == "" {
					return fmt.Errorf("--out is required for db export")
				}
				return store.ExportChat(cmd.Context(), args[0], out)
			default:
				return fmt.Errorf("unknown format %q (want md, json or db)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "output format: md, json or db")
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	cmd.Flags().BoolVar(&includeMetadata, "metadata", false, "include IDs and timestamps in JSON output")
	return cmd
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.db>",
		Short: "Import chats from an exported database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ids, err := store.ImportChats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			metrics.Global().ChatsImported.Add(float64(len(ids)))
			log.Info().Int("chats", len(ids)).Str("src", args[0]).Msg("import finished")
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func writeOut(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
