package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvasko/adjutant/internal/api"
	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/config"
	"github.com/nvasko/adjutant/internal/db"
)

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Manage the read-only HTTP API",
		Long:  "The API exposes health, audit entries, pending actions, and conversation metadata.",
	}

	cmd.AddCommand(newAPIStartCmd())
	return cmd
}

func newAPIStartCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIStart(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "adjutant.yaml", "path to Adjutant config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runAPIStart(cmd *cobra.Command, configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return err
	}

	auditLog, err := audit.NewLogger(audit.LoggerOpts{
		DB:            gormDB,
		LogContent:    cfg.Audit.LogContent,
		RetentionDays: cfg.Audit.RetentionDays,
	})
	if err != nil {
		return err
	}

	if addr == "" {
		addr = cfg.API.Addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return api.Start(ctx, api.StartOpts{
		DB:    gormDB,
		Audit: auditLog,
		Addr:  addr,
		Out:   cmd.OutOrStdout(),
	})
}
