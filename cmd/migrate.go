/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sarpras-lapor/apiserver/internal/db"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long: `Roll back migrations. By default only the latest migration is
reverted; pass --steps 0 to revert all of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if downSteps > 0 {
			err = migrator.Steps(-downSteps)
		} else {
			err = migrator.Down()
		}
		if err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (defaults to MIGRATIONS_PATH)")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "Number of migrations to revert, 0 for all")
}

func newMigrator() (*migrate.Migrate, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	path := migrationsPath
	if path == "" {
		path = cfg.MigrationsPath
	}

	migrator, err := migrate.New("file://"+path, db.PostgresURL(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	logger.WithField("path", path).Info("running migrations")
	return migrator, nil
}
