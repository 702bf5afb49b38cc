package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/weft/internal/config"
	"github.com/oriys/weft/internal/seed"
	"github.com/oriys/weft/internal/store"
)

// migrateCmd opens the configured store (creating its schema as a side
// effect of store.Open, per internal/store's ensureSchema) and seeds the
// base world if one doesn't exist yet, without starting the daemon's
// transport or scheduler. Useful for provisioning a database ahead of
// time, e.g. before mounting it read-write into a container.
func migrateCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create/upgrade the store schema and seed the base world",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)
			if cmd.Flags().Changed("db") {
				cfg.Store.Path = dbPath
			}

			ctx := context.Background()
			s, err := store.Open(ctx, cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer s.Close()

			has, err := seed.HasWorld(ctx, s)
			if err != nil {
				return fmt.Errorf("check world: %w", err)
			}
			if has {
				fmt.Println("store already has a world; nothing to do")
				return nil
			}

			result, err := seed.Bootstrap(ctx, s)
			if err != nil {
				return fmt.Errorf("bootstrap world: %w", err)
			}
			fmt.Printf("seeded base world: void=%d entity_base=%d system=%d\n",
				result.VoidID, result.EntityBaseID, result.SystemID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite database file")
	return cmd
}
