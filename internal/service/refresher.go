package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/countries/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves the two external resources a refresh needs
type Fetcher interface {
	FetchCountries(ctx context.Context) ([]model.RawCountry, error)
	FetchRates(ctx context.Context) (model.RatesTable, error)
}

// RefreshResult is reported to the caller after a successful refresh
type RefreshResult struct {
	Inserted        int    `json:"inserted"`
	Updated         int    `json:"updated"`
	Total           int    `json:"total"`
	LastRefreshedAt string `json:"last_refreshed_at"`
}

// Refresher orchestrates fetch, reconcile, write and render as one all-or-nothing refresh
type Refresher struct {
	fetcher    Fetcher
	reconciler *Reconciler
	writer     *Writer
	storage    Storage
	imagePath  string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewRefresher creates a new Refresher publishing the summary image at imagePath
func NewRefresher(fetcher Fetcher, reconciler *Reconciler, writer *Writer, storage Storage, imagePath string, logger zerolog.Logger) *Refresher {
	return &Refresher{
		fetcher:    fetcher,
		reconciler: reconciler,
		writer:     writer,
		storage:    storage,
		imagePath:  imagePath,
		now:        time.Now,
		logger:     logger,
	}
}

// ImagePath returns where the summary image is published
func (r *Refresher) ImagePath() string {
	return r.imagePath
}

// Refresh fetches both sources concurrently, validates every record, then
// upserts countries, stamps metadata and renders the summary image in one
// transaction. Nothing is written unless every step succeeds.
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("refresh_id", runID).Logger()
	refreshedAt := r.now().UTC()
	start := time.Now()

	logger.Info().Msg("Starting refresh")

	res, err := r.refresh(ctx, logger, runID, refreshedAt)
	observeRefresh(res, err, refreshedAt, time.Since(start))

	if err != nil {
		logger.Error().Err(err).Str("outcome", refreshOutcome(err)).Dur("elapsed", time.Since(start)).Msg("Refresh failed")
		return nil, err
	}

	logger.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("total", res.Total).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh complete")

	return res, nil
}

func (r *Refresher) refresh(ctx context.Context, logger zerolog.Logger, runID string, refreshedAt time.Time) (*RefreshResult, error) {
	raw, rates, err := r.fetch(ctx, logger)
	if err != nil {
		return nil, err
	}

	prepared, err := r.reconciler.Prepare(raw, rates, refreshedAt)
	if err != nil {
		return nil, err
	}

	staging := fmt.Sprintf("%s.%s.tmp", r.imagePath, runID)
	var applied *ApplyResult

	err = r.storage.Transact(ctx, func(ctx context.Context, tx TxView) error {
		existing, err := tx.ExistingCountries(ctx)
		if err != nil {
			return &StorageError{Op: "load existing countries", Err: err}
		}

		diff := Partition(prepared, existing)
		logger.Debug().Int("to_insert", len(diff.ToInsert)).Int("to_update", len(diff.ToUpdate)).Msg("Computed diff")

		applied, err = r.writer.Apply(ctx, tx, diff, refreshedAt, staging)
		return err
	})
	if err != nil {
		os.Remove(staging)
		if !IsStorageFailure(err) && !IsValidationFailed(err) {
			err = &StorageError{Op: "refresh transaction", Err: err}
		}
		return nil, err
	}

	// The data is committed at this point; a failed publish leaves the previous image in place
	if err := os.Rename(staging, r.imagePath); err != nil {
		logger.Error().Err(err).Str("path", r.imagePath).Msg("Failed to publish summary image")
		os.Remove(staging)
	}

	return &RefreshResult{
		Inserted:        applied.Inserted,
		Updated:         applied.Updated,
		Total:           applied.Total,
		LastRefreshedAt: FormatTimestamp(refreshedAt),
	}, nil
}

// fetch issues both requests concurrently and fails as soon as either fails
func (r *Refresher) fetch(ctx context.Context, logger zerolog.Logger) ([]model.RawCountry, model.RatesTable, error) {
	var raw []model.RawCountry
	var rates model.RatesTable
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = r.fetcher.FetchCountries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rates, err = r.fetcher.FetchRates(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		var dsErr *DataSourceError
		if !errors.As(err, &dsErr) {
			err = &DataSourceError{Reason: "fetch failed", Err: err}
		}
		return nil, nil, err
	}

	logger.Info().
		Int("countries", len(raw)).
		Int("rates", len(rates)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched external data")

	return raw, rates, nil
}
