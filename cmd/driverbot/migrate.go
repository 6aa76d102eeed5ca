// README: migrate command; applies or rolls back the delivery log schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driverbot/internal/infra"
	"driverbot/internal/migrations"
)

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Manage the delivery log schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return errors.New("database.dsn is required")
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := infra.NewDB(ctx, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			switch action {
			case "up":
				return migrations.Up(ctx, pool)
			case "down":
				return migrations.Down(ctx, pool)
			case "status":
				return migrations.Status(ctx, pool)
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}
	rootCmd.AddCommand(migrateCmd)
}
