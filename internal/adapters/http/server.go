package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp creates the fiber app serving the group API and the Prometheus
// metrics endpoint.
func NewApp(groups *GroupHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "rbuild",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
	})

	api := app.Group("/api")
	v1 := api.Group("/v1")
	groups.Register(v1.Group("/groups"))

	app.Get("/metrics", MetricsHandler())
	return app
}

// MetricsHandler serves the default Prometheus registry through fiber's
// net/http adaptor.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
