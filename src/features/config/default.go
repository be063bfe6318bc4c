package config

import "time"

var defaultConfig = Config{
	Fingerprint: Fingerprint{
		Engine:      "fpcalc",
		Algorithm:   2,
		MaxDuration: 120 * time.Second,
		FpcalcPath:  "fpcalc",
		Cache:       true,
	},
	Decoder: Decoder{
		Backend:      "auto",
		FFmpegPath:   "ffmpeg",
		BufferFrames: 4096,
	},
	Logger: Logger{
		Enabled: true,
		Level:   "info",
		Format:  "text",
	},
	Server: Server{
		PrintRoutes: false,
		Port:        3636,
	},
	Database: Database{
		Path: "./fingerprints.db",
	},
	AcoustID: AcoustID{
		Enabled:   false,
		ClientKey: "", // Can be obtained at https://acoustid.org/new-application
		BaseURL:   "https://api.acoustid.org",
		Timeout:   10 * time.Second,
	},
	Scan: Scan{
		Workers:    4,
		Extensions: []string{".mp3", ".flac", ".wav", ".ogg", ".m4a", ".opus"},
		WatchPath:  "",
		Debounce:   5 * time.Second,
	},
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() *Config {
	cfg := defaultConfig
	cfg.Scan.Extensions = append([]string(nil), defaultConfig.Scan.Extensions...)
	return &cfg
}
