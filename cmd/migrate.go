package main

import (
	"errors"
	"fmt"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/practice-sem-2/chat-client/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or revert the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := initLogger(logLevel)

			cfg, err := config.LoadDatabase(viper.New(), configPath)
			if err != nil {
				return err
			}

			db := initDB(cfg.DatabaseDSN, logger)
			defer func() {
				if err := db.Close(); err != nil {
					logger.WithError(err).Error("can't close database connection")
				}
			}()

			driver, err := pgx.WithInstance(db.DB, &pgx.Config{})
			if err != nil {
				return fmt.Errorf("can't init migrations driver: %w", err)
			}

			m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsDir, "pgx", driver)
			if err != nil {
				return fmt.Errorf("can't open migrations: %w", err)
			}

			if args[0] == "up" {
				err = m.Up()
			} else {
				err = m.Down()
			}

			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("schema is up to date")
				return nil
			} else if err != nil {
				return err
			}

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info("schema reverted")
				return nil
			} else if err != nil {
				return err
			}

			logger.
				WithField("version", version).
				WithField("dirty", dirty).
				Info("schema migrated")
			return nil
		},
	}
}
