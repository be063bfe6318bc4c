package scanning

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the scanning feature.
type Handler struct {
	service *Service
}

// NewHandler creates a new handler for the scanning feature.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type scanRequest struct {
	Path string `json:"path" form:"path"`
}

// StartScan starts a background scan of the directory in the request body.
func (h *Handler) StartScan(c *fiber.Ctx) error {
	var req scanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if req.Path == "" {
		req.Path = c.Query("path")
	}
	if req.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing path"})
	}

	id, err := h.service.StartScan(req.Path)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": id,
		"_links": fiber.Map{"self": fmt.Sprintf("%s/scan/%s", c.BaseURL(), id)},
	})
}

// GetScan returns the state of a scan job.
func (h *Handler) GetScan(c *fiber.Ctx) error {
	job, ok := h.service.GetScan(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}
	return c.JSON(job)
}
