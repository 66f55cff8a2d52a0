package handlers

import (
	"os"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/templates"
	"github.com/rs/zerolog"
)

func HomeHandler(countries CountryStore, metadata MetadataStore, imagePath string, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		data := templates.HomeData{LastRefreshedAt: "N/A"}

		// Load what we can; the page still renders when a query fails
		total, err := countries.Count(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Error counting countries")
		} else {
			data.TotalCountries = total
			data.HasData = total > 0
		}

		if data.HasData {
			if v, ok, err := metadata.Get(ctx, model.LastRefreshedAtKey); err != nil {
				logger.Error().Err(err).Msg("Error loading last refresh time")
			} else if ok {
				data.LastRefreshedAt = v
			}

			top, err := countries.TopByEstimatedGDP(ctx, 5)
			if err != nil {
				logger.Error().Err(err).Msg("Error loading gdp ranking")
			}
			for i, entry := range top {
				data.TopByGDP = append(data.TopByGDP, templates.GDPRow{
					Rank: i + 1,
					Name: entry.Name,
					GDP:  service.FormatGDP(entry.EstimatedGDP),
				})
			}

			if _, err := os.Stat(imagePath); err == nil {
				data.HasImage = true
			}
		}

		page := templates.Home(data)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}
