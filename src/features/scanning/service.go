package scanning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
	"github.com/contre95/fpbridge/src/features/jobs"
	"github.com/contre95/fpbridge/src/features/metrics"
)

// JobType is the job type scans run under.
const JobType = "scan"

// Scan statuses, also used as metric labels.
const (
	StatusOK      = "ok"
	StatusCached  = "cached"
	StatusFailed  = "failed"
	StatusRemoved = "removed"
)

// Forgetter drops cached state for files that disappeared.
type Forgetter interface {
	Delete(ctx context.Context, path string) error
}

// FileResult is the outcome of fingerprinting one file during a scan.
type FileResult struct {
	Path        string  `json:"path"`
	Status      string  `json:"status"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Error       string  `json:"error,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Tags        *Tags   `json:"tags,omitempty"`
}

// Summary aggregates a directory scan.
type Summary struct {
	Root          string       `json:"root"`
	Total         int          `json:"total"`
	Fingerprinted int          `json:"fingerprinted"`
	Cached        int          `json:"cached"`
	Failed        int          `json:"failed"`
	Elapsed       float64      `json:"elapsed"`
	Files         []FileResult `json:"files"`
}

// Service fingerprints directories and files reported by a watcher.
type Service struct {
	fingerprinter Fingerprinter
	tags          TagReader
	forgetter     Forgetter
	jobService    jobs.JobService
	metrics       *metrics.Metrics
	config        *config.Manager
}

// NewService creates a new scanning service. tags, forgetter, jobService and m may be nil.
func NewService(fingerprinter Fingerprinter, tags TagReader, forgetter Forgetter, jobService jobs.JobService, m *metrics.Metrics, cfg *config.Manager) *Service {
	return &Service{
		fingerprinter: fingerprinter,
		tags:          tags,
		forgetter:     forgetter,
		jobService:    jobService,
		metrics:       m,
		config:        cfg,
	}
}

// Supported reports whether path has one of the configured scan extensions.
func (s *Service) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.config.Get().Scan.Extensions {
		if strings.EqualFold(e, ext) || strings.EqualFold("."+e, ext) {
			return true
		}
	}
	return false
}

// Collect lists the supported files below root in lexical order.
func (s *Service) Collect(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() && s.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// FingerprintFile fingerprints a single file and reads its tags.
func (s *Service) FingerprintFile(ctx context.Context, path string) FileResult {
	result := FileResult{Path: path}

	res, err := s.fingerprinter.ComputeFingerprint(ctx, path)
	switch {
	case err != nil:
		result.Status = StatusFailed
		result.Error = err.Error()
		result.Kind = string(fingerprinting.KindOf(err))
	case res.Cached:
		result.Status = StatusCached
	default:
		result.Status = StatusOK
	}
	if res != nil {
		result.Fingerprint = res.Fingerprint
		result.Duration = res.Duration.Seconds()
	}
	s.metrics.FileScanned(result.Status)

	if s.tags != nil && result.Status != StatusFailed {
		tags, err := s.tags.ReadFileTags(ctx, path)
		if err != nil {
			slog.Debug("Failed to read tags", "path", path, "error", err)
		} else {
			result.Tags = tags
		}
	}
	return result
}

// Scan fingerprints every supported file below root using scan.workers
// goroutines. Per-file failures are recorded in the summary; only walking
// errors and cancellation fail the scan.
func (s *Service) Scan(ctx context.Context, root string, progress func(int, string)) (*Summary, error) {
	start := time.Now()
	files, err := s.Collect(ctx, root)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Root: root, Total: len(files), Files: make([]FileResult, len(files))}
	if len(files) == 0 {
		return summary, nil
	}

	workers := s.config.Get().Scan.Workers
	if workers < 1 {
		workers = 1
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary.Files[i] = s.FingerprintFile(gctx, path)
			n := done.Add(1)
			if progress != nil {
				progress(int(n*100/int64(len(files))), fmt.Sprintf("Fingerprinted %d/%d: %s", n, len(files), filepath.Base(path)))
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for _, f := range summary.Files {
		switch f.Status {
		case StatusOK:
			summary.Fingerprinted++
		case StatusCached:
			summary.Cached++
		case StatusFailed:
			summary.Failed++
		}
	}
	summary.Elapsed = time.Since(start).Seconds()

	slog.Info("Scan finished", "root", root, "total", summary.Total, "fingerprinted", summary.Fingerprinted,
		"cached", summary.Cached, "failed", summary.Failed, "elapsed", summary.Elapsed)
	return summary, err
}

// StartScan validates root and runs the scan as a background job.
func (s *Service) StartScan(root string) (string, error) {
	if s.jobService == nil {
		return "", errors.New("no job service configured")
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("cannot scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot scan %s: not a directory", root)
	}
	return s.jobService.StartJob(JobType, "Scan "+root, map[string]any{"root": root})
}

// GetScan returns the job of a scan started with StartScan.
func (s *Service) GetScan(id string) (*jobs.Job, bool) {
	if s.jobService == nil {
		return nil, false
	}
	job, ok := s.jobService.GetJob(id)
	if !ok || job.Type != JobType {
		return nil, false
	}
	return job, true
}

// HandleEvents fingerprints created or modified files and forgets removed ones
// until events is closed or ctx is done.
func (s *Service) HandleEvents(ctx context.Context, events <-chan FileEvent, onResult func(FileResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			result := s.handleEvent(ctx, ev)
			if onResult != nil {
				onResult(result)
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, ev FileEvent) FileResult {
	if ev.EventType == FileRemoved {
		if s.forgetter != nil {
			if err := s.forgetter.Delete(ctx, ev.Path); err != nil {
				slog.Warn("Failed to forget removed file", "path", ev.Path, "error", err)
			}
		}
		s.metrics.FileScanned(StatusRemoved)
		return FileResult{Path: ev.Path, Status: StatusRemoved}
	}
	slog.Info("Fingerprinting watched file", "path", ev.Path, "event", ev.EventType)
	return s.FingerprintFile(ctx, ev.Path)
}

// Watch starts w on path and handles its events until ctx is done.
func (s *Service) Watch(ctx context.Context, w Watcher, events <-chan FileEvent, path string, onResult func(FileResult)) error {
	if err := w.Start(ctx, path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Stop()
	s.HandleEvents(ctx, events, onResult)
	return nil
}
