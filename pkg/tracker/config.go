package tracker

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultBatchSize             = 10
	DefaultFlushInterval         = 5 * time.Second
	DefaultSessionTimeout        = 30 * time.Minute
	DefaultHeartbeatInterval     = 30 * time.Second
	DefaultPerformanceSampleRate = 0.1
)

// DefaultScrollThresholds are the scroll depths reported once per page.
var DefaultScrollThresholds = []int{25, 50, 75, 100}

// Configuration errors returned by Init.
var (
	ErrMissingTrackingID = errors.New("visiora: tracking_id is required")
	ErrMissingAPIURL     = errors.New("visiora: api_url is required")
	ErrMissingWindow     = errors.New("visiora: host window is required")
)

// Config is what the host page supplies. Only TrackingID and APIURL are
// required; every other field falls back to its default when zero.
type Config struct {
	TrackingID string `json:"tracking_id" yaml:"tracking_id"`
	APIURL     string `json:"api_url" yaml:"api_url"`
	Debug      bool   `json:"debug" yaml:"debug"`

	BatchSize             int           `json:"batch_size" yaml:"batch_size"`
	FlushInterval         time.Duration `json:"flush_interval" yaml:"flush_interval"`
	SessionTimeout        time.Duration `json:"session_timeout" yaml:"session_timeout"`
	HeartbeatInterval     time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	ScrollThresholds      []int         `json:"scroll_thresholds" yaml:"scroll_thresholds"`
	PerformanceSampleRate float64       `json:"performance_sample_rate" yaml:"performance_sample_rate"`
}

// Validate reports the first missing required value.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TrackingID) == "" {
		return ErrMissingTrackingID
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrMissingAPIURL
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if len(c.ScrollThresholds) == 0 {
		c.ScrollThresholds = DefaultScrollThresholds
	}
	if c.PerformanceSampleRate <= 0 {
		c.PerformanceSampleRate = DefaultPerformanceSampleRate
	}
	return c
}

// LoadConfig reads a YAML config file and applies VISIORA_* environment
// overrides, loading a .env file first when one exists. An empty path skips
// the file.
func LoadConfig(path string) (Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("VISIORA_TRACKING_ID"); v != "" {
		cfg.TrackingID = v
	}
	if v := os.Getenv("VISIORA_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("VISIORA_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VISIORA_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	if v := os.Getenv("VISIORA_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VISIORA_BATCH_SIZE: %w", err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("VISIORA_FLUSH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VISIORA_FLUSH_INTERVAL: %w", err)
		}
		cfg.FlushInterval = d
	}
	return nil
}
