package main

import (
	"fmt"

	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the PostgreSQL schema.

Examples:
  mpesa-service migrate up
  mpesa-service migrate down --path ./migrations`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(migrate.Up), string(migrate.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := migrate.Direction(args[0])
			if direction != migrate.Up && direction != migrate.Down {
				return fmt.Errorf("unknown direction %q, expected up or down", args[0])
			}

			cfg := loadConfig()
			if path == "" {
				path = cfg.Storage.MigrationsPath
			}

			db := postgres.MustInitDB(cfg.Storage)
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			return migrate.Run(db, path, direction)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "migrations directory (default from config)")
	return cmd
}
