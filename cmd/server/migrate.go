package main

import (
    "context"
    "fmt"
    "time"

    "github.com/spf13/cobra"

    "github.com/iliyamo/notes-marketplace/internal/config"
    "github.com/iliyamo/notes-marketplace/internal/database"
)

func migrateCmd() *cobra.Command {
    var timeout time.Duration
    cmd := &cobra.Command{
        Use:   "migrate",
        Short: "Apply pending database migrations",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := config.Load()
            db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
            if err != nil {
                return fmt.Errorf("open database: %w", err)
            }
            defer db.Close()

            ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
            defer cancel()
            if err := database.Migrate(ctx, db); err != nil {
                return fmt.Errorf("migrate: %w", err)
            }
            fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
            return nil
        },
    }
    cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall migration deadline")
    return cmd
}
