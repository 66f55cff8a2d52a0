package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MetadataStore handles the global key/value metadata table
type MetadataStore struct {
	db DBTX
}

// NewMetadataStore creates a new MetadataStore
func NewMetadataStore(db DBTX) *MetadataStore {
	return &MetadataStore{db: db}
}

// Upsert inserts a value or replaces the existing one for key
func (s *MetadataStore) Upsert(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO metadata (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert metadata %s: %w", key, err)
	}

	return nil
}

// Get returns the value stored under key and whether it exists
func (s *MetadataStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %s: %w", key, err)
	}

	return value.String, value.Valid, nil
}
