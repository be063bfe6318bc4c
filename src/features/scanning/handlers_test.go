package scanning

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/contre95/fpbridge/src/features/jobs"
)

func TestScanHandlers(t *testing.T) {
	root := writeTree(t, "song.wav")
	jobService := jobs.NewService()
	s := NewService(&fakeFingerprinter{}, nil, nil, jobService, nil, newTestConfig(1))
	jobService.RegisterHandler(JobType, jobs.NewBaseTaskHandler(NewScanTask(s)))

	app := fiber.New()
	RegisterRoutes(app, s)

	req := httptest.NewRequest("POST", "/scan", strings.NewReader(`{"path":"`+root+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil || started.JobID == "" {
		t.Fatalf("expected job id, got %v (%v)", started, err)
	}
	jobService.Wait()

	resp, err = app.Test(httptest.NewRequest("GET", "/scan/"+started.JobID, nil))
	if err != nil {
		t.Fatal(err)
	}
	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.Status != jobs.JobStatusCompleted {
		t.Errorf("expected completed scan, got %s", job.Status)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/scan/nope", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/scan", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 without path, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/scan?path="+root+"/missing", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing directory, got %d", resp.StatusCode)
	}
}
