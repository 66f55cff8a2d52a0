package cmd

import (
	"github.com/jjenkins/countries/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the countries and metadata tables",
	Long:  `Apply the database schema. Running it again is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.Migrate(ctx, db); err != nil {
			return err
		}

		logger.Info().Msg("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
