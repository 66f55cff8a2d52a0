package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/store"
	"github.com/rs/zerolog"
)

// CountryStore is the read and delete side of the countries table
type CountryStore interface {
	List(ctx context.Context, f model.CountryFilter) ([]model.Country, error)
	GetByName(ctx context.Context, name string) (*model.Country, error)
	DeleteByName(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context) (int, error)
	TopByEstimatedGDP(ctx context.Context, limit int) ([]model.GDPEntry, error)
}

// MetadataStore reads key/value metadata
type MetadataStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Refresher runs one full refresh
type Refresher interface {
	Refresh(ctx context.Context) (*service.RefreshResult, error)
}

// Country is the JSON shape of a country row. Unknown values are null.
type Country struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Capital         *string  `json:"capital"`
	Region          *string  `json:"region"`
	Population      int64    `json:"population"`
	CurrencyCode    *string  `json:"currency_code"`
	ExchangeRate    *float64 `json:"exchange_rate"`
	EstimatedGDP    *float64 `json:"estimated_gdp"`
	FlagURL         *string  `json:"flag_url"`
	LastRefreshedAt string   `json:"last_refreshed_at"`
}

func toCountry(c *model.Country) Country {
	out := Country{
		ID:              c.ID,
		Name:            c.Name,
		Population:      c.Population,
		LastRefreshedAt: service.FormatTimestamp(c.LastRefreshedAt),
	}
	if c.Capital.Valid {
		out.Capital = &c.Capital.String
	}
	if c.Region.Valid {
		out.Region = &c.Region.String
	}
	if c.CurrencyCode.Valid {
		out.CurrencyCode = &c.CurrencyCode.String
	}
	if c.ExchangeRate.Valid {
		out.ExchangeRate = &c.ExchangeRate.Float64
	}
	if c.EstimatedGDP.Valid {
		out.EstimatedGDP = &c.EstimatedGDP.Float64
	}
	if c.FlagURL.Valid {
		out.FlagURL = &c.FlagURL.String
	}
	return out
}

// RefreshHandler runs a refresh and maps its failure category onto a status code
func RefreshHandler(refresher Refresher, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := refresher.Refresh(c.UserContext())
		if err == nil {
			return c.JSON(fiber.Map{
				"message":           "Refresh complete",
				"inserted":          res.Inserted,
				"updated":           res.Updated,
				"total":             res.Total,
				"last_refreshed_at": res.LastRefreshedAt,
			})
		}

		var dsErr *service.DataSourceError
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &dsErr):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "External data source unavailable",
				"details": dsErr.Details(),
			})
		case errors.As(err, &vErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Validation failed",
				"details": fiber.Map{"message": vErr.Message},
			})
		default:
			logger.Error().Err(err).Msg("Refresh failed")
			return err
		}
	}
}

// ListCountriesHandler lists countries filtered by region and currency
func ListCountriesHandler(countries CountryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := model.CountryFilter{
			Region:   c.Query("region"),
			Currency: c.Query("currency"),
			Sort:     c.Query("sort"),
		}

		rows, err := countries.List(c.UserContext(), filter)
		if errors.Is(err, store.ErrInvalidSort) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Validation failed",
				"details": fiber.Map{"sort": "invalid sort value"},
			})
		}
		if err != nil {
			return err
		}

		out := make([]Country, 0, len(rows))
		for i := range rows {
			out = append(out, toCountry(&rows[i]))
		}
		return c.JSON(out)
	}
}

// GetCountryHandler looks a country up by name ignoring case
func GetCountryHandler(countries CountryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		country, err := countries.GetByName(c.UserContext(), c.Params("name"))
		if err != nil {
			return err
		}
		if country == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Country not found"})
		}
		return c.JSON(toCountry(country))
	}
}

// DeleteCountryHandler removes a country by name ignoring case
func DeleteCountryHandler(countries CountryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deleted, err := countries.DeleteByName(c.UserContext(), c.Params("name"))
		if err != nil {
			return err
		}
		if !deleted {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Country not found"})
		}
		return c.JSON(fiber.Map{"message": "Country deleted"})
	}
}

// ImageHandler serves the last published summary image. The file is read on
// every request since a refresh replaces it in place.
func ImageHandler(imagePath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := os.Stat(imagePath)
		if errors.Is(err, os.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Summary image not found"})
		}
		if err != nil {
			return err
		}

		data, err := os.ReadFile(imagePath)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "image/png")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderLastModified, info.ModTime().UTC().Format(http.TimeFormat))
		return c.Send(data)
	}
}
