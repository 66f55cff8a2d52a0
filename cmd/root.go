package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjenkins/countries/internal/config"
	"github.com/jjenkins/countries/internal/logging"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "countries",
	Short: "Country cache with currency-adjusted GDP estimates",
	Long: `Countries caches country data from restcountries.com joined with
USD exchange rates from open.er-api.com, estimates GDP for each country,
and serves the result over a REST API together with a summary image.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = logging.New(&logging.Config{
			Level:      cfg.LogLevel,
			Format:     cfg.LogFormat,
			Output:     cfg.LogOutput,
			MaxSizeMB:  50,
			MaxBackups: 3,
		})
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB connects to the configured database
func openDB() (*sql.DB, error) {
	logger.Debug().Msg("Connecting to database")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRefresher wires the refresh pipeline against db
func newRefresher(db *sql.DB) (*service.Refresher, error) {
	renderer, err := service.NewSummaryRenderer()
	if err != nil {
		return nil, err
	}

	return service.NewRefresher(
		service.NewDataClient(cfg.CountriesURL, cfg.RatesURL, cfg.FetchTimeout),
		service.NewReconciler(service.RandomMultiplier{}),
		service.NewWriter(renderer),
		service.NewSQLStorage(store.NewStore(db, cfg.TxMaxAttempts, logger)),
		cfg.ImagePath(),
		logger,
	), nil
}

// signalContext is cancelled on the first SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
