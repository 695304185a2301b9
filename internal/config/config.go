// Package config loads the development collector's settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the collector configuration.
type Config struct {
	Address         string        `yaml:"address"`
	DatabasePath    string        `yaml:"database_path"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Load reads the YAML file at path, fills defaults and applies environment
// overrides. A .env file in the working directory is loaded first when
// present. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read collector config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse collector config: %w", err)
		}
	}

	// Override with environment variables if present
	if address := os.Getenv("VISIORA_COLLECTOR_ADDRESS"); address != "" {
		cfg.Address = address
	}
	if dbPath := os.Getenv("VISIORA_DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if origins := os.Getenv("VISIORA_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	// Set defaults
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8123"
	}
	if cfg.DatabasePath == "" {
		dbPath, err := DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = dbPath
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return &cfg, nil
}

// DefaultDatabasePath returns events.db inside the platform's application
// data directory, creating the directory if needed.
func DefaultDatabasePath() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home directory: %w", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "Visiora")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "Visiora")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "Visiora")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		return "", fmt.Errorf("create application directory: %w", err)
	}
	return filepath.Join(applicationDirectory, "events.db"), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
