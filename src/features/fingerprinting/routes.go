package fingerprinting

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the fingerprinting feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)

	app.Get("/fingerprint", handler.GetFingerprint)
	app.Get("/lookup", handler.Lookup)
	app.Get("/engine", handler.Engine)
}
