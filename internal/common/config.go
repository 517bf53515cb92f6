package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Attributes  AttributesConfig `toml:"attributes"`
	Uploads     UploadsConfig    `toml:"uploads"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig selects where runs and the attribute lookup live.
// Runs and settings are always kept in Badger; the lookup can live in Badger or
// in a hand-editable JSON file.
type StorageConfig struct {
	Type   string       `toml:"type"` // Lookup backend: "badger" (default) or "file"
	Badger BadgerConfig `toml:"badger"`
	File   FileConfig   `toml:"file"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests, demos)
	SeedLookupPath string `toml:"seed_lookup_path"` // Lookup JSON imported on first start
}

// FileConfig configures the file-backed attribute lookup
type FileConfig struct {
	LookupPath string `toml:"lookup_path"` // Path of the lookup JSON file
	Watch      bool   `toml:"watch"`       // Publish an event when the file is edited by hand
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig contains configuration for WebSocket event push
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Minimum interval between broadcasts of the same event type, e.g. "500ms"
	ThrottleInterval string `toml:"throttle_interval"`
}

// AttributesConfig controls the attribute lookup reconciliation
type AttributesConfig struct {
	AutoReconcileSchedule string `toml:"auto_reconcile_schedule"` // Cron expression, empty disables
	AutoSave              bool   `toml:"auto_save"`               // Persist scheduled reconciliations instead of previewing
}

// UploadsConfig limits result uploads
type UploadsConfig struct {
	MaxBodyBytes int64 `toml:"max_body_bytes"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
			File: FileConfig{
				LookupPath: "./data/attribute_lookup.json",
				Watch:      true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			AllowedEvents:    []string{},
			ThrottleInterval: "250ms",
		},
		Attributes: AttributesConfig{
			AutoReconcileSchedule: "", // Disabled - reconciliation is requested explicitly
			AutoSave:              false,
		},
		Uploads: UploadsConfig{
			MaxBodyBytes: 32 * 1024 * 1024, // 32MB
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BENCHDASH_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("BENCHDASH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BENCHDASH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if storageType := os.Getenv("BENCHDASH_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("BENCHDASH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if lookupPath := os.Getenv("BENCHDASH_LOOKUP_PATH"); lookupPath != "" {
		config.Storage.File.LookupPath = lookupPath
	}
	if seedPath := os.Getenv("BENCHDASH_SEED_LOOKUP_PATH"); seedPath != "" {
		config.Storage.Badger.SeedLookupPath = seedPath
	}

	// Logging configuration
	if level := os.Getenv("BENCHDASH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("BENCHDASH_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("BENCHDASH_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// WebSocket configuration
	if allowed := os.Getenv("BENCHDASH_WEBSOCKET_ALLOWED_EVENTS"); allowed != "" {
		if events := splitList(allowed); len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}
	if throttle := os.Getenv("BENCHDASH_WEBSOCKET_THROTTLE_INTERVAL"); throttle != "" {
		if _, err := time.ParseDuration(throttle); err == nil {
			config.WebSocket.ThrottleInterval = throttle
		}
	}

	// Attributes configuration
	if schedule, ok := os.LookupEnv("BENCHDASH_ATTRIBUTES_SCHEDULE"); ok {
		config.Attributes.AutoReconcileSchedule = schedule
	}
	if autoSave := os.Getenv("BENCHDASH_ATTRIBUTES_AUTO_SAVE"); autoSave != "" {
		if b, err := strconv.ParseBool(autoSave); err == nil {
			config.Attributes.AutoSave = b
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "", "badger", "file":
	default:
		return fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'file')", c.Storage.Type)
	}
	if c.Storage.Type == "file" && c.Storage.File.LookupPath == "" {
		return fmt.Errorf("storage.file.lookup_path is required when storage.type is 'file'")
	}
	if c.Attributes.AutoReconcileSchedule != "" {
		if err := ValidateSchedule(c.Attributes.AutoReconcileSchedule); err != nil {
			return fmt.Errorf("invalid attributes.auto_reconcile_schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a standard five-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ThrottleInterval returns the parsed websocket throttle interval, 0 when unset or invalid
func (c *Config) ThrottleInterval() time.Duration {
	d, err := time.ParseDuration(c.WebSocket.ThrottleInterval)
	if err != nil {
		return 0
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
