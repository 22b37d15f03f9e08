package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alpaca/internal/config"
	"alpaca/internal/storage"
)

func newChatsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage chats and folders",
	}
	cmd.AddCommand(
		newChatsListCmd(cfg),
		newChatsCreateCmd(cfg),
		newChatsRenameCmd(cfg),
		newChatsDeleteCmd(cfg),
		newChatsDuplicateCmd(cfg),
		newChatsShowCmd(cfg),
		newFoldersCmd(cfg),
	)
	return cmd
}

func newFoldersCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage chat folders",
	}

	var parent, color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			f := storage.ChatFolder{ID: storage.NewID(), Name: args[0]}
			if parent != "" {
				f.Parent = &parent
			}
			if color != "" {
				f.Color = &color
			}
			if err := store.UpsertFolder(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Println(f.ID)
			return nil
		},
	}
	add.Flags().StringVar(&parent, "parent", "", "parent folder ID")
	add.Flags().StringVar(&color, "color", "", "folder color")

	var listParent string
	list := &cobra.Command{
		Use:   "list",
		Short: "List folders at one level",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var p *string
			if listParent != "" {
				p = &listParent
			}
			folders, err := store.ListFolders(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, f := range folders {
				fmt.Printf("%s\t%s\n", f.ID, f.Name)
			}
			return nil
		},
	}
	list.Flags().StringVar(&listParent, "parent", "", "list folders under this parent")

	var moveTo string
	move := &cobra.Command{
		Use:   "move <folder-id>",
		Short: "Move a folder under a new parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var p *string
			if moveTo != "" {
				p = &moveTo
			}
			return store.MoveFolder(cmd.Context(), args[0], p)
		},
	}
	move.Flags().StringVar(&moveTo, "to", "", "new parent folder ID (empty = top level)")

	remove := &cobra.Command{
		Use:   "remove <folder-id>",
		Short: "Delete a folder and everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteFolder(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, list, move, remove)
	return cmd
}

func newChatsListCmd(cfg *config.Config) *cobra.Command {
	var folderID string
	var templates bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var chats []storage.ChatListItem
			if templates {
				chats, err = store.ListTemplates(cmd.Context())
			} else {
				var folder *string
				if folderID != "" {
					folder = &folderID
				}
				chats, err = store.ListChatsByFolder(cmd.Context(), folder)
			}
			if err != nil {
				return err
			}

			for _, c := range chats {
				last := "-"
				if c.LastMessageAt != nil {
					last = *c.LastMessageAt
				}
				fmt.Printf("%s\t%s\t%s\n", c.ID, c.Name, last)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&folderID, "folder", "", "list chats inside this folder")
	cmd.Flags().BoolVar(&templates, "templates", false, "list template chats")
	return cmd
}

func newChatsCreateCmd(cfg *config.Config) *cobra.Command {
	var template bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.ChatNames(cmd.Context())
			if err != nil {
				return err
			}
			chat := storage.Chat{
				ID:         storage.NewID(),
				Name:       storage.NumberedName(args[0], names),
				IsTemplate: template,
			}
			if err := store.UpsertChat(cmd.Context(), chat); err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", chat.ID, chat.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&template, "template", false, "mark the chat as a template")
	return cmd
}

func newChatsRenameCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chat-id> <name>",
		Short: "Rename a chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			chat, err := store.GetChat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chat.Name = args[1]
			return store.UpsertChat(cmd.Context(), chat)
		},
	}
}

func newChatsDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a chat with its messages and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteChat(cmd.Context(), args[0])
		},
	}
}

func newChatsDuplicateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <chat-id>",
		Short: "Copy a chat with all its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := store.GetChat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			names, err := store.ChatNames(cmd.Context())
			if err != nil {
				return err
			}
			dup := storage.Chat{
				ID:         storage.NewID(),
				Name:       storage.NumberedName(src.Name, names),
				Folder:     src.Folder,
				IsTemplate: src.IsTemplate,
			}
			if err := store.DuplicateChat(cmd.Context(), src.ID, dup); err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", dup.ID, dup.Name)
			return nil
		},
	}
}

func newChatsShowCmd(cfg *config.Config) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a chat's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			messages, err := store.ListMessages(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return err
			}
			for _, m := range messages {
				fmt.Printf("[%s] %s: %s\n", m.DateTime, m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to print (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "messages to skip from the start")
	return cmd
}
