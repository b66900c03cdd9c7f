package cmd

import (
	"healthsync/internal/infrastructure/migration"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Накатить миграции схемы",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := migration.NewMigration(cfg, migration.DefaultEngine).Up(); err != nil {
			return err
		}
		log.Info("migrations applied", "driver", cfg.DB.Driver)
		return nil
	},
}
