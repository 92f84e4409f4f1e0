package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/config"
	"github.com/nvasko/adjutant/internal/db"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and maintain the audit trail",
	}

	cmd.AddCommand(newAuditRecentCmd())
	cmd.AddCommand(newAuditPruneCmd())
	return cmd
}

func newAuditRecentCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		kind       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent audit entries",
		Long:  "Lists the newest audit entries, optionally filtered by user or kind.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditRecent(cmd, configPath, userID, kind, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "adjutant.yaml", "path to Adjutant config file")
	cmd.Flags().StringVar(&userID, "user", "", "filter by user ID")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by entry kind (message, tool-exec, security, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	return cmd
}

func runAuditRecent(cmd *cobra.Command, configPath, userID, kind string, limit int) error {
	out := cmd.OutOrStdout()

	auditLog, err := openAuditLogger(configPath)
	if err != nil {
		return err
	}

	entries, err := auditLog.Recent(audit.Query{UserID: userID, Kind: kind, Limit: limit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries found.")
		return nil
	}

	for _, e := range entries {
		blocked := ""
		if e.Blocked {
			blocked = " BLOCKED"
		}
		fmt.Fprintf(out, "%s  %-9s %-12s%s %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.UserID, blocked, e.Payload)
		if e.Detail != "" {
			fmt.Fprintf(out, "%21s %s\n", "", e.Detail)
		}
	}
	return nil
}

func newAuditPruneCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditPrune(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "adjutant.yaml", "path to Adjutant config file")
	return cmd
}

func runAuditPrune(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	auditLog, err := openAuditLogger(configPath)
	if err != nil {
		return err
	}

	pruned, err := auditLog.Prune()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned %d audit entries\n", pruned)
	return nil
}

func openAuditLogger(configPath string) (*audit.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return audit.NewLogger(audit.LoggerOpts{
		DB:            gormDB,
		LogContent:    cfg.Audit.LogContent,
		RetentionDays: cfg.Audit.RetentionDays,
	})
}
