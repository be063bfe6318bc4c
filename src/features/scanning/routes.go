package scanning

import "github.com/gofiber/fiber/v2"

// RegisterRoutes registers the routes for the scanning feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)

	scan := app.Group("/scan")
	scan.Post("/", handler.StartScan)
	scan.Get("/:id", handler.GetScan)
}
