package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jjenkins/countries/internal/model"
)

// ErrInvalidSort is returned by List for an unknown sort key
var ErrInvalidSort = errors.New("invalid sort value")

// countryColumns lists the columns written by a refresh, in bind order
var countryColumns = []string{
	"name", "capital", "region", "population", "currency_code",
	"exchange_rate", "estimated_gdp", "flag_url", "last_refreshed_at",
}

const selectCountry = `
	SELECT id, name, capital, region, population, currency_code,
	       exchange_rate, estimated_gdp, flag_url, last_refreshed_at
	FROM countries
`

// CountryStore handles database operations for countries
type CountryStore struct {
	db DBTX
}

// NewCountryStore creates a new CountryStore
func NewCountryStore(db DBTX) *CountryStore {
	return &CountryStore{db: db}
}

// ListRefs returns the id and name of every country
func (s *CountryStore) ListRefs(ctx context.Context) ([]model.CountryRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM countries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list country names: %w", err)
	}
	defer rows.Close()

	var refs []model.CountryRef
	for rows.Next() {
		var r model.CountryRef
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan country name: %w", err)
		}
		refs = append(refs, r)
	}

	return refs, rows.Err()
}

// UpdateByID overwrites the refreshed columns of an existing country
func (s *CountryStore) UpdateByID(ctx context.Context, id int64, c *model.Country) error {
	query := `
		UPDATE countries
		SET name = $2, capital = $3, region = $4, population = $5, currency_code = $6,
		    exchange_rate = $7, estimated_gdp = $8, flag_url = $9, last_refreshed_at = $10
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, append([]any{id}, countryArgs(c)...)...)
	if err != nil {
		return fmt.Errorf("failed to update country %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update country %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update country %d: row no longer exists", id)
	}

	c.ID = id
	return nil
}

// InsertBatch inserts all countries with a single multi-row statement
func (s *CountryStore) InsertBatch(ctx context.Context, countries []model.Country) error {
	if len(countries) == 0 {
		return nil
	}

	args := make([]any, 0, len(countries)*len(countryColumns))
	for i := range countries {
		args = append(args, countryArgs(&countries[i])...)
	}

	if _, err := s.db.ExecContext(ctx, buildInsertQuery(len(countries)), args...); err != nil {
		return fmt.Errorf("failed to insert %d countries: %w", len(countries), err)
	}

	return nil
}

// buildInsertQuery renders an INSERT with n value tuples
func buildInsertQuery(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO countries (")
	b.WriteString(strings.Join(countryColumns, ", "))
	b.WriteString(") VALUES ")

	width := len(countryColumns)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*width+j+1)
		}
		b.WriteByte(')')
	}

	return b.String()
}

func countryArgs(c *model.Country) []any {
	return []any{
		c.Name,
		c.Capital,
		c.Region,
		c.Population,
		c.CurrencyCode,
		c.ExchangeRate,
		c.EstimatedGDP,
		c.FlagURL,
		c.LastRefreshedAt,
	}
}

// Count returns the total number of countries
func (s *CountryStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM countries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count countries: %w", err)
	}
	return count, nil
}

// TopByEstimatedGDP returns up to limit countries with a positive estimated GDP, highest first
func (s *CountryStore) TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error) {
	query := `
		SELECT name, estimated_gdp
		FROM countries
		WHERE estimated_gdp IS NOT NULL AND estimated_gdp > 0
		ORDER BY estimated_gdp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top countries by gdp: %w", err)
	}
	defer rows.Close()

	var entries []model.GDPEntry
	for rows.Next() {
		var e model.GDPEntry
		if err := rows.Scan(&e.Name, &e.EstimatedGDP); err != nil {
			return nil, fmt.Errorf("failed to scan gdp entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// List retrieves countries matching the filter with whitelisted sorting
func (s *CountryStore) List(ctx context.Context, f model.CountryFilter) ([]model.Country, error) {
	// Whitelist valid sort keys to prevent SQL injection
	orderClauses := map[string]string{
		"":          "name ASC",
		"name_asc":  "name ASC",
		"name_desc": "name DESC",
		"gdp_desc":  "estimated_gdp DESC NULLS LAST, name ASC",
		"gdp_asc":   "estimated_gdp ASC NULLS LAST, name ASC",
	}

	orderBy, ok := orderClauses[f.Sort]
	if !ok {
		return nil, ErrInvalidSort
	}

	var where []string
	var args []any
	if f.Region != "" {
		args = append(args, f.Region)
		where = append(where, fmt.Sprintf("region = $%d", len(args)))
	}
	if f.Currency != "" {
		args = append(args, strings.ToUpper(f.Currency))
		where = append(where, fmt.Sprintf("currency_code = $%d", len(args)))
	}

	query := selectCountry
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	defer rows.Close()

	var countries []model.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		countries = append(countries, *c)
	}

	return countries, rows.Err()
}

// GetByName retrieves a country by case-insensitive name
func (s *CountryStore) GetByName(ctx context.Context, name string) (*model.Country, error) {
	row := s.db.QueryRowContext(ctx, selectCountry+" WHERE LOWER(name) = LOWER($1)", name)

	c, err := scanCountry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country %s: %w", name, err)
	}

	return c, nil
}

// DeleteByName removes a country by case-insensitive name, reporting whether a row was deleted
func (s *CountryStore) DeleteByName(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM countries WHERE LOWER(name) = LOWER($1)", name)
	if err != nil {
		return false, fmt.Errorf("failed to delete country %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete country %s: %w", name, err)
	}

	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCountry(row scanner) (*model.Country, error) {
	var c model.Country
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Capital,
		&c.Region,
		&c.Population,
		&c.CurrencyCode,
		&c.ExchangeRate,
		&c.EstimatedGDP,
		&c.FlagURL,
		&c.LastRefreshedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
