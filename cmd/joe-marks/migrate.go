package main

import (
	"github.com/spf13/cobra"

	"github.com/joestump/joe-marks/internal/config"
	"github.com/joestump/joe-marks/internal/db"
	"github.com/joestump/joe-marks/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, dsn, err := config.LoadDB()
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Options{Level: "info"})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			database, err := db.New(driver, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, driver); err != nil {
				return err
			}

			log.Info("migrations complete", logger.String("driver", driver))
			return nil
		},
	}
}
