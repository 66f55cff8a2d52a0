package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jjenkins/countries/internal/model"
)

// memStorage is a transactional in-memory Storage. Each Transact works on a
// copy of the committed state and swaps it in only when fn succeeds.
type memStorage struct {
	mu        sync.Mutex
	nextID    int64
	countries []model.Country
	metadata  map[string]string
	commits   int

	insertErr   error
	updateErr   error
	insertSizes []int
}

func newMemStorage() *memStorage {
	return &memStorage{nextID: 1, metadata: map[string]string{}}
}

func (m *memStorage) Transact(ctx context.Context, fn func(ctx context.Context, tx TxView) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		storage:   m,
		nextID:    m.nextID,
		countries: slices.Clone(m.countries),
		metadata:  maps.Clone(m.metadata),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.nextID = tx.nextID
	m.countries = tx.countries
	m.metadata = tx.metadata
	m.commits++
	return nil
}

// seed inserts committed rows directly
func (m *memStorage) seed(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		m.countries = append(m.countries, model.Country{ID: m.nextID, Name: name, Population: 1})
		m.nextID++
	}
}

func (m *memStorage) snapshot() ([]model.Country, map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.countries), maps.Clone(m.metadata)
}

func (m *memStorage) byName(name string) (model.Country, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.countries {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return model.Country{}, false
}

type memTx struct {
	storage   *memStorage
	nextID    int64
	countries []model.Country
	metadata  map[string]string
}

func (t *memTx) ExistingCountries(ctx context.Context) ([]model.CountryRef, error) {
	refs := make([]model.CountryRef, 0, len(t.countries))
	for _, c := range t.countries {
		refs = append(refs, model.CountryRef{ID: c.ID, Name: c.Name})
	}
	return refs, nil
}

func (t *memTx) UpdateCountry(ctx context.Context, id int64, c *model.Country) error {
	if t.storage.updateErr != nil {
		return t.storage.updateErr
	}
	for i := range t.countries {
		if t.countries[i].ID == id {
			updated := *c
			updated.ID = id
			t.countries[i] = updated
			return nil
		}
	}
	return fmt.Errorf("country %d not found", id)
}

func (t *memTx) InsertCountries(ctx context.Context, countries []model.Country) error {
	t.storage.insertSizes = append(t.storage.insertSizes, len(countries))
	if t.storage.insertErr != nil {
		return t.storage.insertErr
	}
	for _, c := range countries {
		for _, existing := range t.countries {
			if strings.EqualFold(existing.Name, c.Name) {
				return fmt.Errorf("duplicate key %q", c.Name)
			}
		}
		c.ID = t.nextID
		t.nextID++
		t.countries = append(t.countries, c)
	}
	return nil
}

func (t *memTx) UpsertMetadata(ctx context.Context, key, value string) error {
	t.metadata[key] = value
	return nil
}

func (t *memTx) CountCountries(ctx context.Context) (int, error) {
	return len(t.countries), nil
}

func (t *memTx) TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error) {
	var entries []model.GDPEntry
	for _, c := range t.countries {
		if c.EstimatedGDP.Valid && c.EstimatedGDP.Float64 > 0 {
			entries = append(entries, model.GDPEntry{Name: c.Name, EstimatedGDP: c.EstimatedGDP.Float64})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EstimatedGDP > entries[j].EstimatedGDP
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (t *memTx) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	v, ok := t.metadata[key]
	return v, ok, nil
}

// stubFetcher returns canned data or errors
type stubFetcher struct {
	countries    []model.RawCountry
	rates        model.RatesTable
	countriesErr error
	ratesErr     error
}

func (f *stubFetcher) FetchCountries(ctx context.Context) ([]model.RawCountry, error) {
	return f.countries, f.countriesErr
}

func (f *stubFetcher) FetchRates(ctx context.Context) (model.RatesTable, error) {
	return f.rates, f.ratesErr
}

// stubRenderer records calls and optionally fails
type stubRenderer struct {
	paths []string
	err   error
}

func (r *stubRenderer) Render(ctx context.Context, view SummaryView, outputPath string) error {
	r.paths = append(r.paths, outputPath)
	return r.err
}

// stubView is a fixed SummaryView
type stubView struct {
	total int
	top   []model.GDPEntry
	meta  map[string]string
	err   error
}

func (v *stubView) CountCountries(ctx context.Context) (int, error) {
	return v.total, v.err
}

func (v *stubView) TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error) {
	return v.top, nil
}

func (v *stubView) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	value, ok := v.meta[key]
	return value, ok, nil
}
