package fingerprinting

import (
	"context"
	"errors"
	"time"

	"github.com/contre95/fpbridge/src/audio"
)

// CacheKey identifies one version of a file for a given algorithm and feed
// limit. A zero MaxDuration means the whole file was fed.
type CacheKey struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Algorithm   audio.Algorithm
	MaxDuration time.Duration
}

// Cache stores computed fingerprints. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (*Result, error)
	Put(ctx context.Context, key CacheKey, result *Result) error
}

// Recording is a MusicBrainz recording attached to an AcoustID match.
type Recording struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Duration int      `json:"duration"`
}

// Match is the best AcoustID result for a fingerprint.
type Match struct {
	AcoustID   string      `json:"acoustid"`
	Score      float64     `json:"score"`
	Recordings []Recording `json:"recordings"`
}

// ErrIdentifierDisabled reports that no identifier is configured or that it is
// switched off. It is a configuration state, not an upstream failure.
var ErrIdentifierDisabled = errors.New("identifier disabled")

// Identifier resolves fingerprints against an external database such as AcoustID.
// Lookup returns nil, nil when nothing matches.
type Identifier interface {
	Lookup(ctx context.Context, fingerprint string, duration time.Duration) (*Match, error)
}
