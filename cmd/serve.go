package cmd

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jjenkins/countries/internal/handlers"
	"github.com/jjenkins/countries/internal/middleware"
	"github.com/jjenkins/countries/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the countries REST server",
	Long: `Start the web server exposing the cached countries, the refresh
endpoint, the summary image, and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// PORT from the environment unless --port was given
		if !cmd.Flags().Changed("port") {
			port = cfg.Port
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		refresher, err := newRefresher(db)
		if err != nil {
			return err
		}

		countryStore := store.NewCountryStore(db)
		metadataStore := store.NewMetadataStore(db)
		imagePath := refresher.ImagePath()

		app := fiber.New(fiber.Config{
			AppName:               "Countries",
			DisableStartupMessage: true,
			ErrorHandler:          handlers.ErrorHandler(logger),
		})

		app.Use(recover.New())
		app.Use(helmet.New())
		app.Use(fiberlogger.New())
		app.Use(middleware.Metrics())

		// Routes
		app.Get("/", handlers.HomeHandler(countryStore, metadataStore, imagePath, logger))
		app.Get("/health", handlers.HealthHandler)
		app.Get("/status", handlers.StatusHandler(countryStore, metadataStore))
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		// Country routes; /image must be registered before /:name
		app.Post("/countries/refresh", handlers.RefreshHandler(refresher, logger))
		app.Get("/countries", handlers.ListCountriesHandler(countryStore))
		app.Get("/countries/image", handlers.ImageHandler(imagePath))
		app.Get("/countries/:name", handlers.GetCountryHandler(countryStore))
		app.Delete("/countries/:name", handlers.DeleteCountryHandler(countryStore))

		app.Use(handlers.NotFoundHandler)

		ctx, cancel := signalContext()
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("port", port).Str("image", imagePath).Msg("Starting server")
			errCh <- app.Listen(":" + port)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info().Msg("Shutting down server")
			return app.ShutdownWithTimeout(30 * time.Second)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "3000", "Port to run the server on")
}
