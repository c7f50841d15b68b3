package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/worker"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, catalog *service.RouteCatalog, delegate *worker.Delegate, directions *service.DirectionsService) {
	handler := NewHandler(catalog, delegate, directions)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Route dataset
		api.Get("/routes", handler.ListRoutes)
		api.Post("/routes/build", handler.BuildRoute)
		api.Get("/routes/:id", handler.GetRoute)
		api.Get("/routes/:id/position", handler.GetPosition)

		// Geometry computation, delegated to the worker
		geometry := api.Group("/geometry")
		geometry.Post("/length-index", handler.LengthIndex)
		geometry.Post("/interpolate", handler.Interpolate)
		geometry.Post("/simplify", handler.Simplify)
		geometry.Post("/nearest", handler.Nearest)

		// Google Directions route source
		api.Post("/directions", handler.Directions)
	}
}

// ErrorHandler renders errors as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
