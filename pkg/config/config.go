package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"db"`
	Track  TrackConfig  `yaml:"track"`
	Feed   FeedConfig   `yaml:"feed"`
	Export ExportConfig `yaml:"export"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds the session journal database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// TrackConfig holds sparsification and output settings.
type TrackConfig struct {
	Distance        Distance `yaml:"distance"`           // Threshold between logged points
	TurnAngleDeg    float64  `yaml:"turn_angle_deg"`     // Heading change threshold
	TurnMinSpeedKmh float64  `yaml:"turn_min_speed_kmh"` // Minimum speed for turn checks
	MinTime         Duration `yaml:"min_time"`           // Elapsed-time threshold
	OutputDir       string   `yaml:"output_dir"`
	Name            string   `yaml:"name"`          // Track name prefix in metadata
	GridCellDeg     float64  `yaml:"grid_cell_deg"` // Cell size for snapped diagnostics, 0 = off
}

// FeedConfig holds position source settings.
type FeedConfig struct {
	WSURL        string   `yaml:"ws_url"`        // Push stream endpoint
	PollURL      string   `yaml:"poll_url"`      // Poll fallback endpoint, empty = disabled
	PollInterval Duration `yaml:"poll_interval"` // 0 = half of track.min_time
}

// ExportConfig holds settings for the share handoff after finalize.
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"` // Invoked as: command <path> <subject>
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Path:  "./logs/tracklog.log",
			Level: "INFO",
		},
		DB: DBConfig{
			Path: "./data/tracklog.db",
		},
		Track: TrackConfig{
			Distance:        Distance(402.336), // 0.25 mi
			TurnAngleDeg:    35,
			TurnMinSpeedKmh: 8,
			MinTime:         Duration(120 * time.Second),
			OutputDir:       "./tracks",
			Name:            "tracklog",
			GridCellDeg:     0,
		},
		Feed: FeedConfig{
			WSURL:        "ws://localhost:2947/stream",
			PollURL:      "",
			PollInterval: 0,
		},
		Export: ExportConfig{
			Enabled: false,
			Command: "",
		},
	}
}

// PollInterval resolves the effective poll period: half the minimum time
// threshold unless set explicitly, so at least one fallback evaluation
// lands inside every time-threshold window.
func (c *Config) PollInterval() time.Duration {
	if c.Feed.PollInterval > 0 {
		return time.Duration(c.Feed.PollInterval)
	}
	return time.Duration(c.Track.MinTime) / 2
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Env fallbacks for values commonly set per deployment.
		if v := os.Getenv("TRACKLOG_WS_URL"); v != "" && cfg.Feed.WSURL == DefaultConfig().Feed.WSURL {
			cfg.Feed.WSURL = v
		}
		if v := os.Getenv("TRACKLOG_OUTPUT_DIR"); v != "" && cfg.Track.OutputDir == DefaultConfig().Track.OutputDir {
			cfg.Track.OutputDir = v
		}

		return cfg, cfg.validate()
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Track.Distance <= 0 {
		return fmt.Errorf("track.distance must be positive, got %v", float64(c.Track.Distance))
	}
	if c.Track.MinTime <= 0 {
		return fmt.Errorf("track.min_time must be positive, got %v", time.Duration(c.Track.MinTime))
	}
	if c.Track.TurnAngleDeg <= 0 || c.Track.TurnAngleDeg > 180 {
		return fmt.Errorf("track.turn_angle_deg must be in (0, 180], got %v", c.Track.TurnAngleDeg)
	}
	if c.Track.GridCellDeg < 0 {
		return fmt.Errorf("track.grid_cell_deg must not be negative, got %v", c.Track.GridCellDeg)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# tracklog configuration
# ----------------------
# Supported units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), mi (statute miles), nm (nautical miles)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
