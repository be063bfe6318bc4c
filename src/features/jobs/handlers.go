package jobs

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

// JobResponse is a wrapper for the Job struct to include API links
type JobResponse struct {
	*Job
	Links map[string]string `json:"_links"`
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func newJobResponse(baseURL string, job *Job) *JobResponse {
	return &JobResponse{
		Job: job,
		Links: map[string]string{
			"self":   fmt.Sprintf("%s/jobs/%s", baseURL, job.ID),
			"cancel": fmt.Sprintf("%s/jobs/%s/cancel", baseURL, job.ID),
		},
	}
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	return c.JSON(newJobResponse(c.BaseURL(), job))
}

func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	jobs := h.service.GetJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	baseURL := c.BaseURL()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = newJobResponse(baseURL, job)
	}
	return c.JSON(responses)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if err := h.service.CancelJob(jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	job, _ := h.service.GetJob(jobID)
	return c.JSON(newJobResponse(c.BaseURL(), job))
}

func (h *Handler) HandleCleanupJobs(c *fiber.Ctx) error {
	h.service.CleanupOldJobs(24 * time.Hour)
	return c.JSON(fiber.Map{"status": "cleanup completed"})
}
