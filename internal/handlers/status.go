package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/countries/internal/model"
)

// StatusHandler reports the cached country count and the last refresh time
func StatusHandler(countries CountryStore, metadata MetadataStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		total, err := countries.Count(ctx)
		if err != nil {
			return err
		}

		var lastRefreshed any
		if v, ok, err := metadata.Get(ctx, model.LastRefreshedAtKey); err != nil {
			return err
		} else if ok {
			lastRefreshed = v
		}

		return c.JSON(fiber.Map{
			"total_countries":   total,
			"last_refreshed_at": lastRefreshed,
		})
	}
}

func HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// NotFoundHandler answers any route nothing else matched
func NotFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
}
