package cmd

import (
	"log/slog"

	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/spf13/cobra"
)

// migrateCmd manually applies or rolls back the embedded schema migrations.
func migrateCmd() *cobra.Command {
	var (
		down bool
		one  bool
	)

	command := &cobra.Command{
		Use:   "migrate",
		Short: "Create or migrate the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf, errConfig := config.Read(cfgFile)
			if errConfig != nil {
				return errConfig
			}

			action := database.MigrateUp

			switch {
			case down && one:
				action = database.MigrateDownOne
			case down:
				action = database.MigrateDn
			case one:
				action = database.MigrateUpOne
			}

			if errMigrate := database.New(conf.Database.DSN, false, conf.Database.LogQueries).Migrate(action); errMigrate != nil {
				return errMigrate
			}

			slog.Info("Migration completed successfully", slog.Bool("down", down), slog.Bool("one", one))

			return nil
		},
	}

	command.Flags().BoolVarP(&down, "down", "d", false, "Roll back migrations instead of applying them")
	command.Flags().BoolVarP(&one, "one", "o", false, "Only apply or roll back a single revision")

	return command
}
