/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jjudge-oj/practice/config"
	"github.com/jjudge-oj/practice/internal/db"
	"github.com/spf13/cobra"
)

var migrationsSource string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Up() }, "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Steps(-1) }, "down")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsSource, "source", "", "migrate source URL, e.g. file://internal/db/migrations (defaults to the embedded migrations)")
}

func runMigration(step func(*migrate.Migrate) error, name string) error {
	cfg := config.LoadConfig()

	migrator, err := db.NewMigrator(cfg.Database, migrationsSource)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := db.IgnoreNoChange(step(migrator)); err != nil {
		return fmt.Errorf("migrate %s failed: %w", name, err)
	}
	return nil
}
