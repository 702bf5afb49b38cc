package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/weft/internal/config"
	"github.com/oriys/weft/internal/seed"
	"github.com/oriys/weft/internal/store"
)

// loadCmd applies a YAML world-spec file to the configured store: entities,
// their verbs, and their bootstrap capabilities, all inside one
// transaction. The daemon does not need to be running; this is the
// provisioning path for worlds authored as spec files rather than built up
// over the wire.
func loadCmd() *cobra.Command {
	var (
		dbPath   string
		specFile string
	)

	cmd := &cobra.Command{
		Use:   "load -f <spec.yaml>",
		Short: "Load a YAML world spec into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if specFile == "" {
				return fmt.Errorf("a spec file is required (-f)")
			}

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
			if !has {
				if _, err := seed.Bootstrap(ctx, s); err != nil {
					return fmt.Errorf("bootstrap world: %w", err)
				}
			}

			spec, err := seed.ParseSpecFile(specFile)
			if err != nil {
				return fmt.Errorf("parse spec: %w", err)
			}
			created, err := spec.Apply(ctx, s)
			if err != nil {
				return fmt.Errorf("apply spec: %w", err)
			}

			for name, id := range created {
				fmt.Printf("created %s (entity %d)\n", name, id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite database file")
	cmd.Flags().StringVarP(&specFile, "file", "f", "", "path to the YAML world spec")
	return cmd
}
