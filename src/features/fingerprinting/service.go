package fingerprinting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/metrics"
)

// Result is a computed fingerprint. Duration covers the whole decoded file,
// even when only its head was fed to the engine.
type Result struct {
	Path        string
	Fingerprint string
	Duration    time.Duration
	Algorithm   audio.Algorithm
	Engine      string
	Cached      bool
}

// Identification is a fingerprint together with its AcoustID match, if any.
type Identification struct {
	Result *Result
	Match  *Match
}

// Service computes fingerprints by streaming decoded PCM into an engine.
type Service struct {
	engine     audio.Engine
	decoder    audio.Decoder
	cache      Cache
	identifier Identifier
	metrics    *metrics.Metrics
	config     *config.Manager
}

// NewService creates a new fingerprinting service. cache, identifier and m may be nil.
func NewService(engine audio.Engine, decoder audio.Decoder, cache Cache, identifier Identifier, m *metrics.Metrics, cfg *config.Manager) *Service {
	return &Service{
		engine:     engine,
		decoder:    decoder,
		cache:      cache,
		identifier: identifier,
		metrics:    m,
		config:     cfg,
	}
}

// Engine returns the engine backing the service.
func (s *Service) Engine() audio.Engine {
	return s.engine
}

// Fingerprint is the success-or-absence form of ComputeFingerprint.
func (s *Service) Fingerprint(ctx context.Context, path string) (string, bool) {
	res, err := s.ComputeFingerprint(ctx, path)
	if err != nil {
		return "", false
	}
	return res.Fingerprint, true
}

// ComputeFingerprint decodes path and returns its fingerprint. Every failure is
// an *Error; the engine context is released exactly once whatever happens.
func (s *Service) ComputeFingerprint(ctx context.Context, path string) (res *Result, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveCall(outcome(res, err), time.Since(start))
	}()

	settings := s.config.Get().Fingerprint
	algorithm := audio.Algorithm(settings.Algorithm)

	key, cacheable := s.cacheKey(path, algorithm, settings.MaxDuration, settings.Cache)
	if cacheable {
		if hit := s.lookupCache(ctx, key); hit != nil {
			return hit, nil
		}
	}

	if err := s.engine.Available(ctx); err != nil {
		return nil, s.fail(KindEngineUnavailable, path, err)
	}

	fpctx, err := s.engine.NewContext(algorithm)
	if err != nil {
		return nil, s.fail(KindContextAllocationFailed, path, err)
	}
	if fpctx == nil {
		return nil, s.fail(KindContextAllocationFailed, path, errors.New("engine returned no context"))
	}
	defer func() {
		fpctx.Release()
		s.metrics.ContextReleased()
	}()

	if err := fpctx.Start(audio.Target); err != nil {
		return nil, s.fail(KindContextAllocationFailed, path, fmt.Errorf("start: %w", err))
	}

	fed, total, err := s.feed(ctx, path, fpctx, settings.MaxDuration)
	if err != nil {
		return nil, err
	}
	if fed == 0 {
		return nil, s.fail(KindRetrievalFailed, path, ErrNoAudio)
	}

	if err := fpctx.Finish(); err != nil {
		return nil, s.fail(KindRetrievalFailed, path, fmt.Errorf("finish: %w", err))
	}
	fingerprint, err := fpctx.Fingerprint()
	if err != nil {
		return nil, s.fail(KindRetrievalFailed, path, err)
	}
	if fingerprint == "" {
		return nil, s.fail(KindRetrievalFailed, path, ErrEmptyFingerprint)
	}

	res = &Result{
		Path:        path,
		Fingerprint: fingerprint,
		Duration:    audio.Target.FrameDuration(total),
		Algorithm:   algorithm,
		Engine:      s.engine.Name(),
	}
	slog.Debug("Fingerprint computed", "path", path, "engine", res.Engine, "fed_frames", fed, "duration", res.Duration)

	if cacheable {
		if err := s.cache.Put(ctx, key, res); err != nil {
			slog.Warn("Failed to cache fingerprint", "path", path, "error", err)
		}
	}
	return res, nil
}

// feed streams the decoded file into fpctx. It returns the frames fed and the
// frames decoded; feeding stops once limit worth of audio went in but decoding
// continues so the reported duration covers the whole file.
func (s *Service) feed(ctx context.Context, path string, fpctx audio.Context, limit time.Duration) (fed, total int64, err error) {
	stream, err := s.decoder.Open(ctx, path)
	if err != nil {
		return 0, 0, s.fail(KindDecodeFailed, path, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Debug("Decoder close failed", "path", path, "error", cerr)
		}
	}()

	if format := stream.Format(); format != audio.Target {
		return 0, 0, s.fail(KindDecodeFailed, path, fmt.Errorf("decoder %s produced %s, engine expects %s", s.decoder.Name(), format, audio.Target))
	}

	maxFrames := int64(-1)
	if limit > 0 {
		maxFrames = audio.Target.FramesFor(limit)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fed, total, s.fail(KindDecodeFailed, path, err)
		}
		buf, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fed, total, s.fail(KindDecodeFailed, path, err)
		}
		if buf == nil {
			continue
		}

		total += int64(buf.Frames())
		if maxFrames >= 0 {
			if fed >= maxFrames {
				continue
			}
			if remaining := maxFrames - fed; int64(buf.Frames()) > remaining {
				buf.Truncate(int(remaining))
			}
		}
		if len(buf.Samples) == 0 {
			continue
		}
		if err := fpctx.Feed(buf); err != nil {
			return fed, total, s.fail(KindRetrievalFailed, path, fmt.Errorf("feed: %w", err))
		}
		fed += int64(buf.Frames())
	}

	s.metrics.FramesFed(int(fed))
	return fed, total, nil
}

// Identify fingerprints path and looks the fingerprint up with the configured identifier.
func (s *Service) Identify(ctx context.Context, path string) (*Identification, error) {
	if s.identifier == nil {
		return nil, fmt.Errorf("no identifier configured: %w", ErrIdentifierDisabled)
	}
	res, err := s.ComputeFingerprint(ctx, path)
	if err != nil {
		return nil, err
	}
	match, err := s.identifier.Lookup(ctx, res.Fingerprint, res.Duration)
	if err != nil {
		return &Identification{Result: res}, fmt.Errorf("lookup failed: %w", err)
	}
	return &Identification{Result: res, Match: match}, nil
}

func (s *Service) cacheKey(path string, algorithm audio.Algorithm, maxDuration time.Duration, enabled bool) (CacheKey, bool) {
	if s.cache == nil || !enabled {
		return CacheKey{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return CacheKey{}, false
	}
	if maxDuration < 0 {
		maxDuration = 0
	}
	return CacheKey{
		Path:        path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Algorithm:   algorithm,
		MaxDuration: maxDuration,
	}, true
}

func (s *Service) lookupCache(ctx context.Context, key CacheKey) *Result {
	hit, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Fingerprint cache lookup failed", "path", key.Path, "error", err)
		return nil
	}
	if hit != nil {
		hit.Cached = true
		slog.Debug("Fingerprint cache hit", "path", key.Path)
	}
	return hit
}

func (s *Service) fail(kind Kind, path string, err error) *Error {
	slog.Error("Fingerprint failed", "path", path, "stage", kind, "engine", s.engine.Name(), "error", err)
	return &Error{Kind: kind, Path: path, Err: err}
}

func outcome(res *Result, err error) string {
	if err != nil {
		if kind := KindOf(err); kind != "" {
			return string(kind)
		}
		return "error"
	}
	if res != nil && res.Cached {
		return metrics.OutcomeCached
	}
	return metrics.OutcomeOK
}
