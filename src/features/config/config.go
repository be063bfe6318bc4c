package config

import "time"

// Config holds the application configuration.
type Config struct {
	Fingerprint Fingerprint `yaml:"fingerprint"`
	Decoder     Decoder     `yaml:"decoder"`
	Logger      Logger      `yaml:"logger"`
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	AcoustID    AcoustID    `yaml:"acoustid"`
	Scan        Scan        `yaml:"scan"`
}

// Fingerprint holds the engine settings used for every fingerprint call.
type Fingerprint struct {
	Engine      string        `yaml:"engine" validate:"oneof=fpcalc libchromaprint"`
	Algorithm   int           `yaml:"algorithm" validate:"min=1,max=5"`
	MaxDuration time.Duration `yaml:"max_duration" validate:"min=0"` // 0 fingerprints the whole file
	FpcalcPath  string        `yaml:"fpcalc_path"`
	Cache       bool          `yaml:"cache"`
}

// Decoder selects how audio files are turned into PCM.
type Decoder struct {
	Backend      string `yaml:"backend" validate:"oneof=auto ffmpeg native"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	BufferFrames int    `yaml:"buffer_frames" validate:"min=256"`
}

// Database holds the configuration for the fingerprint cache
type Database struct {
	Path string `yaml:"path" validate:"required"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=text json logfmt"`
}

// AcoustID holds the configuration for AcoustID lookups
type AcoustID struct {
	Enabled   bool          `yaml:"enabled"`
	ClientKey string        `yaml:"client_key"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Scan holds the configuration for directory scans and the watcher
type Scan struct {
	Workers    int           `yaml:"workers" validate:"min=1,max=64"`
	Extensions []string      `yaml:"extensions"`
	WatchPath  string        `yaml:"watch_path"`
	Debounce   time.Duration `yaml:"debounce"`
}
