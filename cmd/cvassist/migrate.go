package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cv-assistant/internal/shared/storage/db"
	"cv-assistant/internal/shared/telemetry"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		return migrate(cmd, action)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, action string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer telemetry.Sync()

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultMigrateOptions())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	switch action {
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var version int64
		version, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
		}
	default:
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	telemetry.Info("migrate.done", map[string]any{"action": action})
	return nil
}
