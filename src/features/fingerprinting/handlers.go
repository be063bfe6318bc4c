package fingerprinting

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the fingerprinting feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new handler for the fingerprinting feature.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func resultMap(res *Result) fiber.Map {
	return fiber.Map{
		"path":        res.Path,
		"fingerprint": res.Fingerprint,
		"duration":    res.Duration.Seconds(),
		"algorithm":   int(res.Algorithm),
		"engine":      res.Engine,
		"cached":      res.Cached,
	}
}

// GetFingerprint computes the fingerprint of the file named by the path query parameter.
func (h *Handler) GetFingerprint(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing path query parameter",
		})
	}
	res, err := h.service.ComputeFingerprint(c.UserContext(), path)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   string(KindOf(err)),
			"message": err.Error(),
		})
	}
	return c.JSON(resultMap(res))
}

// Lookup fingerprints a file and resolves it against AcoustID.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing path query parameter",
		})
	}
	ident, err := h.service.Identify(c.UserContext(), path)
	if err != nil {
		if kind := KindOf(err); kind != "" {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   string(kind),
				"message": err.Error(),
			})
		}
		if errors.Is(err, ErrIdentifierDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		slog.Error("AcoustID lookup failed", "path", path, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	resp := resultMap(ident.Result)
	resp["match"] = ident.Match
	return c.JSON(resp)
}

// Engine reports the configured engine and whether it is usable.
func (h *Handler) Engine(c *fiber.Ctx) error {
	engine := h.service.Engine()
	resp := fiber.Map{
		"engine":    engine.Name(),
		"available": true,
	}
	if err := engine.Available(c.UserContext()); err != nil {
		resp["available"] = false
		resp["error"] = err.Error()
	} else {
		resp["version"] = engine.Version()
	}
	return c.JSON(resp)
}
