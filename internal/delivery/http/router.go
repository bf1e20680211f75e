package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartcity/traffic-analyzer/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, analysisSvc *service.AnalysisService, gatherer prometheus.Gatherer) {
	handler := NewHandler(analysisSvc)

	app.Get("/", handler.Root)
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Legacy path kept for existing upload clients
	app.Post("/analyze", handler.Analyze)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Post("/analyze", handler.Analyze)
	}
}
