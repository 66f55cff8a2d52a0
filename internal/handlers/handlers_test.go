package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCountries struct {
	rows []model.Country
	err  error
}

func (f *fakeCountries) List(ctx context.Context, filter model.CountryFilter) ([]model.Country, error) {
	switch filter.Sort {
	case "", "name_asc", "name_desc", "gdp_asc", "gdp_desc":
	default:
		return nil, store.ErrInvalidSort
	}
	var out []model.Country
	for _, c := range f.rows {
		if filter.Region != "" && c.Region.String != filter.Region {
			continue
		}
		out = append(out, c)
	}
	return out, f.err
}

func (f *fakeCountries) GetByName(ctx context.Context, name string) (*model.Country, error) {
	for i := range f.rows {
		if strings.EqualFold(f.rows[i].Name, name) {
			return &f.rows[i], nil
		}
	}
	return nil, f.err
}

func (f *fakeCountries) DeleteByName(ctx context.Context, name string) (bool, error) {
	for i := range f.rows {
		if strings.EqualFold(f.rows[i].Name, name) {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, f.err
}

func (f *fakeCountries) Count(ctx context.Context) (int, error) {
	return len(f.rows), f.err
}

func (f *fakeCountries) TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error) {
	var out []model.GDPEntry
	for _, c := range f.rows {
		if c.EstimatedGDP.Valid && c.EstimatedGDP.Float64 > 0 && len(out) < limit {
			out = append(out, model.GDPEntry{Name: c.Name, EstimatedGDP: c.EstimatedGDP.Float64})
		}
	}
	return out, f.err
}

type fakeMetadata map[string]string

func (m fakeMetadata) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

type fakeRefresher struct {
	res *service.RefreshResult
	err error
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*service.RefreshResult, error) {
	return f.res, f.err
}

var refreshedAt = time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC)

func sampleCountries() *fakeCountries {
	return &fakeCountries{rows: []model.Country{
		{
			ID:              1,
			Name:            "Nigeria",
			Capital:         sql.NullString{String: "Abuja", Valid: true},
			Region:          sql.NullString{String: "Africa", Valid: true},
			Population:      206139589,
			CurrencyCode:    sql.NullString{String: "NGN", Valid: true},
			ExchangeRate:    sql.NullFloat64{Float64: 1600.23, Valid: true},
			EstimatedGDP:    sql.NullFloat64{Float64: 25767448125.2, Valid: true},
			FlagURL:         sql.NullString{String: "https://flagcdn.com/ng.svg", Valid: true},
			LastRefreshedAt: refreshedAt,
		},
		{ID: 2, Name: "Antarctica", Population: 1000, LastRefreshedAt: refreshedAt},
	}}
}

func newTestApp(countries *fakeCountries, meta fakeMetadata, refresher Refresher, imagePath string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zerolog.Nop())})
	logger := zerolog.Nop()

	app.Get("/", HomeHandler(countries, meta, imagePath, logger))
	app.Get("/health", HealthHandler)
	app.Get("/status", StatusHandler(countries, meta))
	app.Post("/countries/refresh", RefreshHandler(refresher, logger))
	app.Get("/countries", ListCountriesHandler(countries))
	app.Get("/countries/image", ImageHandler(imagePath))
	app.Get("/countries/:name", GetCountryHandler(countries))
	app.Delete("/countries/:name", DeleteCountryHandler(countries))
	app.Use(NotFoundHandler)

	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestHealth(t *testing.T) {
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, "")
	status, body := do(t, app, "GET", "/health")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStatus(t *testing.T) {
	t.Run("never refreshed", func(t *testing.T) {
		app := newTestApp(&fakeCountries{}, fakeMetadata{}, &fakeRefresher{}, "")
		status, body := do(t, app, "GET", "/status")
		assert.Equal(t, fiber.StatusOK, status)
		assert.JSONEq(t, `{"total_countries":0,"last_refreshed_at":null}`, string(body))
	})

	t.Run("after refresh", func(t *testing.T) {
		meta := fakeMetadata{model.LastRefreshedAtKey: "2025-10-25T12:00:00.000Z"}
		app := newTestApp(sampleCountries(), meta, &fakeRefresher{}, "")
		_, body := do(t, app, "GET", "/status")
		assert.JSONEq(t, `{"total_countries":2,"last_refreshed_at":"2025-10-25T12:00:00.000Z"}`, string(body))
	})
}

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name       string
		refresher  *fakeRefresher
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			refresher: &fakeRefresher{res: &service.RefreshResult{
				Inserted: 3, Updated: 1, Total: 4, LastRefreshedAt: "2025-10-25T12:00:00.000Z",
			}},
			wantStatus: fiber.StatusOK,
			wantBody:   `{"message":"Refresh complete","inserted":3,"updated":1,"total":4,"last_refreshed_at":"2025-10-25T12:00:00.000Z"}`,
		},
		{
			name:       "data source unavailable",
			refresher:  &fakeRefresher{err: &service.DataSourceError{URL: "https://open.er-api.com/v6/latest/USD", Reason: "unexpected status code: 500"}},
			wantStatus: fiber.StatusServiceUnavailable,
			wantBody:   `{"error":"External data source unavailable","details":"Could not fetch data from https://open.er-api.com/v6/latest/USD"}`,
		},
		{
			name:       "validation failed",
			refresher:  &fakeRefresher{err: &service.ValidationError{Index: 4, Field: "name", Message: "name and population are required"}},
			wantStatus: fiber.StatusBadRequest,
			wantBody:   `{"error":"Validation failed","details":{"message":"name and population are required"}}`,
		},
		{
			name:       "storage failure",
			refresher:  &fakeRefresher{err: &service.StorageError{Op: "commit", Err: errors.New("connection reset")}},
			wantStatus: fiber.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(sampleCountries(), fakeMetadata{}, tt.refresher, "")
			status, body := do(t, app, "POST", "/countries/refresh")
			assert.Equal(t, tt.wantStatus, status)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestListCountries(t *testing.T) {
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, "")

	status, body := do(t, app, "GET", "/countries?region=Africa&sort=gdp_desc")
	require.Equal(t, fiber.StatusOK, status)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Nigeria", rows[0]["name"])
	assert.Equal(t, "NGN", rows[0]["currency_code"])
	assert.Equal(t, "2025-10-25T12:00:00.000Z", rows[0]["last_refreshed_at"])

	status, body = do(t, app, "GET", "/countries")
	require.Equal(t, fiber.StatusOK, status)
	rows = nil
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1]["currency_code"])
	assert.Nil(t, rows[1]["estimated_gdp"])
	assert.Contains(t, rows[1], "capital")
}

func TestListCountriesEmptyIsArray(t *testing.T) {
	app := newTestApp(&fakeCountries{}, fakeMetadata{}, &fakeRefresher{}, "")
	status, body := do(t, app, "GET", "/countries")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestListCountriesInvalidSort(t *testing.T) {
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, "")
	status, body := do(t, app, "GET", "/countries?sort=population")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Validation failed","details":{"sort":"invalid sort value"}}`, string(body))
}

func TestGetAndDeleteCountry(t *testing.T) {
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, "")

	status, body := do(t, app, "GET", "/countries/nigeria")
	require.Equal(t, fiber.StatusOK, status)
	got := decode(t, body)
	assert.Equal(t, "Nigeria", got["name"])
	assert.Equal(t, "Abuja", got["capital"])
	assert.Equal(t, 1600.23, got["exchange_rate"])

	status, body = do(t, app, "DELETE", "/countries/NIGERIA")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"message":"Country deleted"}`, string(body))

	status, body = do(t, app, "GET", "/countries/Nigeria")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Country not found"}`, string(body))

	status, _ = do(t, app, "DELETE", "/countries/Nigeria")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestImageHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.png")
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, path)

	status, body := do(t, app, "GET", "/countries/image")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Summary image not found"}`, string(body))

	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, os.WriteFile(path, png, 0o644))

	resp, err := app.Test(httptest.NewRequest("GET", "/countries/image", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(sampleCountries(), fakeMetadata{}, &fakeRefresher{}, "")
	status, body := do(t, app, "GET", "/nope")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Not found"}`, string(body))
}

func TestStoreErrorsBecomeInternalServerError(t *testing.T) {
	countries := sampleCountries()
	countries.err = errors.New("pq: connection refused")
	app := newTestApp(countries, fakeMetadata{}, &fakeRefresher{}, "")

	status, body := do(t, app, "GET", "/status")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(body))
}

func TestHome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	meta := fakeMetadata{model.LastRefreshedAtKey: "2025-10-25T12:00:00.000Z"}
	app := newTestApp(sampleCountries(), meta, &fakeRefresher{}, path)

	status, body := do(t, app, "GET", "/")
	assert.Equal(t, fiber.StatusOK, status)
	html := string(body)
	assert.Contains(t, html, "Total countries: <strong>2</strong>")
	assert.Contains(t, html, "25,767,448,125.2")
	assert.Contains(t, html, "2025-10-25T12:00:00.000Z")
	assert.Contains(t, html, `src="/countries/image"`)
}
