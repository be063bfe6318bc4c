package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable the shared library reads its config path from.
const EnvConfigPath = "FPBRIDGE_CONFIG"

// applyEnv overrides config values with environment variables if set
func applyEnv(cfg *Config) {
	if key := os.Getenv("ACOUSTID_CLIENT_KEY"); key != "" {
		cfg.AcoustID.ClientKey = key
	}
	if bin := os.Getenv("FPBRIDGE_FFMPEG"); bin != "" {
		cfg.Decoder.FFmpegPath = bin
	}
	if bin := os.Getenv("FPBRIDGE_FPCALC"); bin != "" {
		cfg.Fingerprint.FpcalcPath = bin
	}
}

// Validate checks a configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Load reads a YAML file from the given path and returns a new ConfigManager.
// If the file doesn't exist, creates a default configuration.
func Load(path string) (*Manager, error) {
	// Check if config file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("Config file not found, creating default configuration", "path", path)
		defaultCfg := Defaults()

		// Save default config to file
		if err := saveDefaultConfig(path, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		slog.Info("Default configuration created successfully", "path", path)
		applyEnv(defaultCfg)
		manager := NewManager(defaultCfg)
		if err := manager.EnsureDirectories(); err != nil {
			return nil, err
		}
		return manager, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Decode over the defaults so missing keys keep their default value
	cfg := Defaults()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	manager := NewManager(cfg)
	if err := manager.EnsureDirectories(); err != nil {
		return nil, err
	}

	return manager, nil
}

// FromEnv loads the file named by FPBRIDGE_CONFIG, or the built-in defaults
// without touching the filesystem when the variable is unset.
func FromEnv() (*Manager, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return Load(path)
	}
	cfg := Defaults()
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return NewManager(cfg), nil
}

// saveDefaultConfig saves the default configuration to the specified file path
func saveDefaultConfig(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	slog.Info("Default configuration saved", "path", path)
	return nil
}
