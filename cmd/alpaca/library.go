package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/storage"
)

func newLibraryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage prompts, bookmarks and pinned models",
	}
	cmd.AddCommand(
		newPromptsCmd(cfg),
		newBookmarksCmd(cfg),
		newPinsCmd(cfg),
	)
	return cmd
}

func newPromptsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage the prompt library",
	}

	var category string
	add := &cobra.Command{
		Use:   "add <name> <content>",
		Short: "Save a prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			p := storage.Prompt{
				ID:        storage.NewID(),
				Name:      args[0],
				Content:   args[1],
				CreatedAt: storage.FormatTime(time.Now()),
			}
			if category != "" {
				p.Category = &category
			}
			if err := store.UpsertPrompt(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Println(p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&category, "category", "", "prompt category")

	var listCategory string
	list := &cobra.Command{
		Use:   "list",
		Short: "List prompts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var cat *string
			if listCategory != "" {
				cat = &listCategory
			}
			prompts, err := store.ListPrompts(cmd.Context(), cat)
			if err != nil {
				return err
			}
			for _, p := range prompts {
				c := "-"
				if p.Category != nil {
					c = *p.Category
				}
				fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, c)
			}
			return nil
		},
	}
	list.Flags().StringVar(&listCategory, "category", "", "only this category")

	remove := &cobra.Command{
		Use:   "remove <prompt-id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeletePrompt(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func newBookmarksCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage message bookmarks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <message-id>",
		Short: "Bookmark a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.BookmarkMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <message-id>",
		Short: "Remove a message's bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.UnbookmarkMessage(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bookmarked messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			bookmarks, err := store.ListBookmarks(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range bookmarks {
				fmt.Printf("%s\t%s\t%.60s\n", b.CreatedAt, b.ChatName, b.Content)
			}
			return nil
		},
	})

	return cmd
}

func newPinsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pins",
		Short: "Manage pinned models per instance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <instance-id> <model>",
		Short: "Pin a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.PinModel(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <instance-id> <model>",
		Short: "Unpin a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.UnpinModel(cmd.Context(), args[1], args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <instance-id>",
		Short: "List pinned models in pin order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			pins, err := store.PinnedModels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, p := range pins {
				fmt.Printf("%d\t%s\n", p.PinOrder, p.ModelName)
			}
			return nil
		},
	})

	return cmd
}
