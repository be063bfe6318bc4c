package scanning

import (
	"context"
	"errors"
	"fmt"

	"github.com/contre95/fpbridge/src/features/jobs"
)

// ScanTask implements jobs.Task for directory scans.
type ScanTask struct {
	service *Service
}

// NewScanTask creates a new ScanTask.
func NewScanTask(service *Service) *ScanTask {
	return &ScanTask{service: service}
}

// MetadataKeys returns the required metadata keys for a scan job.
func (t *ScanTask) MetadataKeys() []string {
	return []string{"root"}
}

// Execute scans the directory stored under "root".
func (t *ScanTask) Execute(ctx context.Context, job *jobs.Job, progressUpdater func(int, string)) (map[string]any, error) {
	root, ok := job.Metadata["root"].(string)
	if !ok || root == "" {
		return nil, errors.New("scan root must be a non-empty string")
	}

	summary, err := t.service.Scan(ctx, root, progressUpdater)
	if err != nil {
		if summary != nil {
			return map[string]any{"summary": summary}, err
		}
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	msg := fmt.Sprintf("Scan finished. %d files (%d fingerprinted, %d cached, %d failed).",
		summary.Total, summary.Fingerprinted, summary.Cached, summary.Failed)
	job.Logger.Info(msg)

	stats := map[string]any{"summary": summary, "msg": msg}
	if summary.Total > 0 && summary.Fingerprinted == 0 && summary.Cached == 0 {
		return stats, errors.New("no files could be fingerprinted")
	}
	return stats, nil
}

// Cleanup does nothing for scans.
func (t *ScanTask) Cleanup(job *jobs.Job) error {
	return nil
}
