package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/countries/internal/model"
)

// InsertChunkSize caps the rows sent per INSERT statement
const InsertChunkSize = 100

// TimestampLayout formats the refresh time stored in metadata
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ArtifactRenderer draws the summary artifact from a transactional read view
type ArtifactRenderer interface {
	Render(ctx context.Context, view SummaryView, outputPath string) error
}

// ApplyResult counts what a single Apply wrote
type ApplyResult struct {
	Inserted int
	Updated  int
	Total    int
}

// Writer applies a Diff inside an open transaction
type Writer struct {
	renderer  ArtifactRenderer
	chunkSize int
}

// NewWriter creates a new Writer
func NewWriter(renderer ArtifactRenderer) *Writer {
	return &Writer{renderer: renderer, chunkSize: InsertChunkSize}
}

// Apply writes every update and insert stamped with refreshedAt, records the
// refresh time in metadata and renders the artifact from the same transaction.
// Any error must abort the transaction.
func (w *Writer) Apply(ctx context.Context, tx TxView, diff *Diff, refreshedAt time.Time, artifactPath string) (*ApplyResult, error) {
	for i := range diff.ToUpdate {
		u := &diff.ToUpdate[i]
		u.Country.LastRefreshedAt = refreshedAt
		if err := tx.UpdateCountry(ctx, u.ID, &u.Country); err != nil {
			return nil, &StorageError{Op: "update country", Err: err}
		}
	}

	for start := 0; start < len(diff.ToInsert); start += w.chunkSize {
		end := min(start+w.chunkSize, len(diff.ToInsert))
		chunk := diff.ToInsert[start:end]
		for i := range chunk {
			chunk[i].LastRefreshedAt = refreshedAt
		}
		if err := tx.InsertCountries(ctx, chunk); err != nil {
			return nil, &StorageError{Op: "insert countries", Err: err}
		}
	}

	if err := tx.UpsertMetadata(ctx, model.LastRefreshedAtKey, FormatTimestamp(refreshedAt)); err != nil {
		return nil, &StorageError{Op: "update last refresh time", Err: err}
	}

	if err := w.renderer.Render(ctx, tx, artifactPath); err != nil {
		return nil, fmt.Errorf("failed to render summary image: %w", err)
	}

	return &ApplyResult{
		Inserted: len(diff.ToInsert),
		Updated:  len(diff.ToUpdate),
		Total:    diff.Total(),
	}, nil
}

// FormatTimestamp renders t as UTC ISO-8601 with milliseconds
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
