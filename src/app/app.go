// Package app wires the bridge's services from a configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
	"github.com/contre95/fpbridge/src/features/hosting"
	"github.com/contre95/fpbridge/src/features/jobs"
	"github.com/contre95/fpbridge/src/features/metrics"
	"github.com/contre95/fpbridge/src/features/scanning"
	"github.com/contre95/fpbridge/src/infra/chroma"
	"github.com/contre95/fpbridge/src/infra/database"
	"github.com/contre95/fpbridge/src/infra/decoder"
	"github.com/contre95/fpbridge/src/infra/metadata"
	"github.com/contre95/fpbridge/src/infra/tag"
	"github.com/contre95/fpbridge/src/infra/watcher"
)

// App holds the wired services.
type App struct {
	Config       *config.Manager
	Metrics      *metrics.Metrics
	Cache        *database.SqliteCache
	Fingerprints *fingerprinting.Service
	Jobs         *jobs.Service
	Scanner      *scanning.Service
}

// Build wires every service from cfg. A cache that cannot be opened is logged
// and skipped.
func Build(cfg *config.Manager) (*App, error) {
	settings := cfg.Get()

	engine, err := chroma.NewEngine(settings.Fingerprint)
	if err != nil {
		return nil, err
	}
	dec := decoder.New(settings.Decoder)
	m := metrics.New()

	a := &App{Config: cfg, Metrics: m}

	var cache fingerprinting.Cache
	var forgetter scanning.Forgetter
	if settings.Fingerprint.Cache {
		if err := cfg.EnsureDirectories(); err != nil {
			slog.Warn("Fingerprint cache disabled", "error", err)
		} else if db, err := database.NewSqliteCache(settings.Database.Path); err != nil {
			slog.Warn("Fingerprint cache disabled", "path", settings.Database.Path, "error", err)
		} else {
			a.Cache = db
			cache = db
			forgetter = db
		}
	}

	a.Fingerprints = fingerprinting.NewService(engine, dec, cache, metadata.NewAcoustIDService(cfg), m, cfg)

	a.Jobs = jobs.NewService()
	a.Scanner = scanning.NewService(a.Fingerprints, tag.NewTagReader(), forgetter, a.Jobs, m, cfg)
	a.Jobs.RegisterHandler(scanning.JobType, jobs.NewBaseTaskHandler(scanning.NewScanTask(a.Scanner)))

	slog.Debug("Bridge wired", "engine", engine.Name(), "decoder", dec.Name(), "cache", a.Cache != nil)
	return a, nil
}

// Server builds the HTTP server over the wired services.
func (a *App) Server() *hosting.Server {
	var stats hosting.CacheStats
	if a.Cache != nil {
		stats = a.Cache
	}
	return hosting.NewServer(a.Config, a.Fingerprints, a.Scanner, a.Jobs, a.Metrics, stats)
}

// Watch fingerprints files appearing below path until ctx is done.
func (a *App) Watch(ctx context.Context, path string, onResult func(scanning.FileResult)) error {
	settings := a.Config.Get().Scan
	events := make(chan scanning.FileEvent, 64)
	w, err := watcher.NewWatcher(events, settings.Extensions, settings.Debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	return a.Scanner.Watch(ctx, w, events, path, onResult)
}

// Close releases the cache database.
func (a *App) Close() error {
	if a.Cache != nil {
		return a.Cache.Close()
	}
	return nil
}
