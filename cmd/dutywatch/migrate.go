package main

import (
	"fmt"

	"github.com/hferris/dutywatch/internal/config"
	"github.com/hferris/dutywatch/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Migrates all tables and seeds the scheduling rules declared in config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dutywatch.yaml", "path to config file")
	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Database.Driver)

	if len(cfg.Rules) > 0 {
		if err := db.SeedRules(gormDB, cfg.Rules); err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded %d scheduling rule(s)\n", len(cfg.Rules))
	}
	return nil
}
