package admin

import (
	"fmt"

	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/cloo-solutions/labelrag/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command group.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := databaseConfig()
			if err != nil {
				return err
			}
			return database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := databaseConfig()
			if err != nil {
				return err
			}
			steps, _ := cmd.Flags().GetInt("steps")
			return database.RollbackMigrations(cfg.DatabaseURL, cfg.MigrationsPath, steps)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func databaseConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("LABELRAG_DATABASE_URL is required")
	}
	return cfg, nil
}
