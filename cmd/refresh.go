package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jjenkins/countries/internal/service"
	"github.com/spf13/cobra"
)

var refreshAttempts int

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch countries and exchange rates and update the cache",
	Long: `Refresh downloads the countries listing and the USD exchange rate
table, recomputes estimated GDP, and replaces the cached countries and the
summary image in a single transaction. Either everything is updated or
nothing is.

Only data source failures are retried; validation and storage failures
stop immediately.

Examples:
  # Refresh once
  ./countries refresh

  # Allow up to three attempts when an upstream API is flaky
  ./countries refresh --attempts 3`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().IntVarP(&refreshAttempts, "attempts", "a", 1, "Total attempts when a data source is unavailable")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	refresher, err := newRefresher(db)
	if err != nil {
		return err
	}

	res, err := refreshWithRetry(ctx, refresher, refreshAttempts, 2*time.Second)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

type refreshRunner interface {
	Refresh(ctx context.Context) (*service.RefreshResult, error)
}

// refreshWithRetry retries data source failures with a linear backoff
func refreshWithRetry(ctx context.Context, r refreshRunner, attempts int, backoff time.Duration) (*service.RefreshResult, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var res *service.RefreshResult
		res, err = r.Refresh(ctx)
		if err == nil {
			return res, nil
		}
		if !service.IsDataSourceUnavailable(err) || attempt == attempts {
			break
		}

		wait := time.Duration(attempt) * backoff
		logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Data source unavailable, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, err
}
