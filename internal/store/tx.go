package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jjenkins/countries/internal/model"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds how often a transaction is re-run after a serialization conflict
	DefaultMaxAttempts = 3

	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// Store runs serializable transactions against the database
type Store struct {
	db          *sql.DB
	maxAttempts int
	logger      zerolog.Logger
}

// NewStore creates a new Store. maxAttempts below 1 falls back to DefaultMaxAttempts.
func NewStore(db *sql.DB, maxAttempts int, logger zerolog.Logger) *Store {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{db: db, maxAttempts: maxAttempts, logger: logger}
}

// InTx runs fn inside a SERIALIZABLE transaction, committing if fn returns nil.
// The whole body is re-run when Postgres reports a serialization failure or deadlock.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("transaction conflict, retrying")
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", s.maxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, NewTx(sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// IsRetryable reports whether err is a Postgres serialization failure or deadlock
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

// Tx is the read/write view of a single refresh transaction
type Tx struct {
	countries *CountryStore
	metadata  *MetadataStore
}

// NewTx wraps an open transaction (or any DBTX) with the country and metadata stores
func NewTx(db DBTX) *Tx {
	return &Tx{
		countries: NewCountryStore(db),
		metadata:  NewMetadataStore(db),
	}
}

// ExistingCountries returns the (id, name) pairs of every stored country
func (t *Tx) ExistingCountries(ctx context.Context) ([]model.CountryRef, error) {
	return t.countries.ListRefs(ctx)
}

// UpdateCountry overwrites every refreshed column of the row with the given id
func (t *Tx) UpdateCountry(ctx context.Context, id int64, c *model.Country) error {
	return t.countries.UpdateByID(ctx, id, c)
}

// InsertCountries inserts rows in a single statement
func (t *Tx) InsertCountries(ctx context.Context, rows []model.Country) error {
	return t.countries.InsertBatch(ctx, rows)
}

// UpsertMetadata inserts or replaces a metadata value
func (t *Tx) UpsertMetadata(ctx context.Context, key, value string) error {
	return t.metadata.Upsert(ctx, key, value)
}

// CountCountries returns the number of stored countries
func (t *Tx) CountCountries(ctx context.Context) (int, error) {
	return t.countries.Count(ctx)
}

// TopByEstimatedGDP returns up to limit countries with a positive estimated GDP, highest first
func (t *Tx) TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error) {
	return t.countries.TopByEstimatedGDP(ctx, limit)
}

// GetMetadata returns the value stored under key
func (t *Tx) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return t.metadata.Get(ctx, key)
}
