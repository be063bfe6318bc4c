package hosting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
	"github.com/contre95/fpbridge/src/features/jobs"
	"github.com/contre95/fpbridge/src/features/metrics"
	"github.com/contre95/fpbridge/src/features/scanning"
)

// CacheStats is implemented by caches that can report their size.
type CacheStats interface {
	Count(ctx context.Context) (int, error)
}

// Server is the HTTP server for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server. cache may be nil.
func NewServer(cfg *config.Manager, fingerprintService *fingerprinting.Service, scanService *scanning.Service, jobService *jobs.Service, m *metrics.Metrics, cache CacheStats) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				slog.Error("Internal Server Error", "error", err, "request_id", c.Locals(requestIDKey))
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
		AppName:               "fpbridge",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	// Add middleware
	app.Use(RequestIDMiddleware())
	app.Use(LogAllRequestsMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		engine := fingerprintService.Engine()
		resp := fiber.Map{
			"status":           "ok",
			"engine":           engine.Name(),
			"engine_available": true,
		}
		if err := engine.Available(c.UserContext()); err != nil {
			resp["engine_available"] = false
			resp["engine_error"] = err.Error()
		}
		if cache != nil {
			if n, err := cache.Count(c.UserContext()); err == nil {
				resp["cached_fingerprints"] = n
			}
		}
		return c.JSON(resp)
	})

	config.RegisterRoutes(app, cfg)
	fingerprinting.RegisterRoutes(app, fingerprintService)
	scanning.RegisterRoutes(app, scanService)
	jobs.RegisterRoutes(app, jobService)
	metrics.RegisterRoutes(app, m)

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "port", s.port)
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
