package scanning

import (
	"context"
	"time"

	"github.com/contre95/fpbridge/src/features/fingerprinting"
)

// Tags is the descriptive metadata read from an audio file.
type Tags struct {
	Title   string   `json:"title,omitempty"`
	Artists []string `json:"artists,omitempty"`
	Album   string   `json:"album,omitempty"`
	Year    int      `json:"year,omitempty"`
	Genre   string   `json:"genre,omitempty"`
	ISRC    string   `json:"isrc,omitempty"`
	Format  string   `json:"format,omitempty"`
}

// TagReader reads embedded tags from audio files.
type TagReader interface {
	ReadFileTags(ctx context.Context, filePath string) (*Tags, error)
}

// Fingerprinter computes fingerprints. It is implemented by fingerprinting.Service.
type Fingerprinter interface {
	ComputeFingerprint(ctx context.Context, path string) (*fingerprinting.Result, error)
}

// Watcher defines the interface for file system watchers
type Watcher interface {
	Start(ctx context.Context, watchPath string) error
	Stop()
}

// FileEventType represents the type of file system event
type FileEventType string

const (
	FileCreated  FileEventType = "created"
	FileRemoved  FileEventType = "removed"
	FileModified FileEventType = "modified"
)

// FileEvent represents a file system event
type FileEvent struct {
	Path      string
	EventType FileEventType
	Timestamp time.Time
}
