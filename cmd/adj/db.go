package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvasko/adjutant/internal/config"
	"github.com/nvasko/adjutant/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Adjutant database",
		Long:  "Opens the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "adjutant.yaml", "path to Adjutant config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return err
	}
	switch cfg.Storage.Driver {
	case "sqlite":
		fmt.Fprintf(out, "Opened %s\n", cfg.Storage.Path)
	default:
		fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.Storage.Host, cfg.Storage.Port, cfg.Storage.Database)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nAdjutant database initialized successfully.")
	return nil
}
