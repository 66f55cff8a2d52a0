package service

import (
	"context"

	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/store"
)

// SummaryView is the read side the summary image is rendered from
type SummaryView interface {
	CountCountries(ctx context.Context) (int, error)
	TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error)
	GetMetadata(ctx context.Context, key string) (string, bool, error)
}

// TxView is everything a refresh does inside its transaction
type TxView interface {
	SummaryView
	ExistingCountries(ctx context.Context) ([]model.CountryRef, error)
	UpdateCountry(ctx context.Context, id int64, c *model.Country) error
	InsertCountries(ctx context.Context, countries []model.Country) error
	UpsertMetadata(ctx context.Context, key, value string) error
}

// Storage runs fn atomically: it commits when fn returns nil and leaves
// prior state untouched otherwise. fn may be invoked more than once.
type Storage interface {
	Transact(ctx context.Context, fn func(ctx context.Context, tx TxView) error) error
}

type sqlStorage struct {
	store *store.Store
}

// NewSQLStorage adapts a store.Store to Storage
func NewSQLStorage(s *store.Store) Storage {
	return &sqlStorage{store: s}
}

func (s *sqlStorage) Transact(ctx context.Context, fn func(ctx context.Context, tx TxView) error) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		return fn(ctx, tx)
	})
}
