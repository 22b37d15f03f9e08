package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alpaca/internal/cache"
	"alpaca/internal/config"
	"alpaca/internal/storage"
)

func newInstancesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Manage model backend instances",
	}
	cmd.AddCommand(
		newInstancesListCmd(cfg),
		newInstancesAddCmd(cfg),
		newInstancesShowCmd(cfg),
		newInstancesModelsCmd(cfg),
		newInstancesRemoveCmd(cfg),
	)
	return cmd
}

func newInstancesListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			instances, err := store.ListInstances(cmd.Context())
			if err != nil {
				return err
			}
			for _, inst := range instances {
				pin := ""
				if inst.Pinned {
					pin = "*"
				}
				fmt.Printf("%s%s\t%s\n", inst.ID, pin, inst.Type)
			}
			return nil
		},
	}
}

func newInstancesAddCmd(cfg *config.Config) *cobra.Command {
	var instanceType, properties string
	var pinned bool
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or update an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			props := properties
			cm, err := cryptoManager(cfg)
			if err != nil {
				return err
			}
			if cm != nil {
				props, err = cm.SealProperties(props)
				if err != nil {
					return err
				}
			}

			return store.UpsertInstance(cmd.Context(), storage.Instance{
				ID:         args[0],
				Pinned:     pinned,
				Type:       instanceType,
				Properties: props,
			})
		},
	}
	cmd.Flags().StringVar(&instanceType, "type", "ollama", "instance type")
	cmd.Flags().StringVar(&properties, "properties", "{}", "properties JSON")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "pin the instance")
	return cmd
}

func newInstancesShowCmd(cfg *config.Config) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			inst, err := store.GetInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			props := inst.Properties
			if reveal {
				cm, err := cryptoManager(cfg)
				if err != nil {
					return err
				}
				if cm != nil {
					props, err = cm.OpenProperties(props)
					if err != nil {
						return err
					}
				}
			}
			fmt.Printf("%s\t%s\n%s\n", inst.ID, inst.Type, props)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "decrypt sealed credential fields")
	return cmd
}

func newInstancesModelsCmd(cfg *config.Config) *cobra.Command {
	var refresh bool
	var add, remove string
	cmd := &cobra.Command{
		Use:   "models <id>",
		Short: "List or edit the remote models last seen on an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			key := cache.Key(args[0], "models")
			if add != "" {
				if err := store.AppendOnlineModel(cmd.Context(), args[0], add); err != nil {
					return err
				}
				cache.Models().Invalidate(key)
			}
			if remove != "" {
				if err := store.RemoveOnlineModel(cmd.Context(), args[0], remove); err != nil {
					return err
				}
				cache.Models().Invalidate(key)
			}
			if refresh {
				cache.Models().Invalidate(key)
			}

			list, err := cache.OnlineModels(cmd.Context(), cache.Models(), store, args[0], cfg.Cache.TTL)
			if err != nil {
				return err
			}
			for _, m := range list {
				fmt.Println(m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached list first")
	cmd.Flags().StringVar(&add, "add", "", "append a model to the stored list")
	cmd.Flags().StringVar(&remove, "remove", "", "remove a model from the stored list")
	return cmd
}

func newInstancesRemoveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteInstance(cmd.Context(), args[0])
		},
	}
}
