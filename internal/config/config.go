package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DisabledDBPath turns sqlite persistence off when used as db_path
const DisabledDBPath = "none"

// BackendConfig holds the assistant backend connection settings
type BackendConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	SessionID string        `yaml:"session_id"`
	APIKey    string        `yaml:"api_key"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimulatorConfig controls the local answer producer
type SimulatorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ChunkInterval time.Duration `yaml:"chunk_interval"`
}

// Config holds all application configuration
type Config struct {
	Backend           BackendConfig   `yaml:"backend"`
	Server            ServerConfig    `yaml:"server"`
	Log               LogConfig       `yaml:"log"`
	Simulator         SimulatorConfig `yaml:"simulator"`
	DBPath            string          `yaml:"db_path"`
	HealthInterval    time.Duration   `yaml:"health_interval"`
	UploadConcurrency int             `yaml:"upload_concurrency"`
	SettingsDir       string          `yaml:"-"`
}

// PersistenceEnabled reports whether a sqlite path is configured
func (c *Config) PersistenceEnabled() bool {
	return c.DBPath != "" && c.DBPath != DisabledDBPath
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Port:      "8080",
			StaticDir: "static",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Simulator: SimulatorConfig{
			ChunkInterval: 50 * time.Millisecond,
		},
		DBPath:            "data/beacon.db",
		HealthInterval:    30 * time.Second,
		UploadConcurrency: 3,
		SettingsDir:       "settings",
	}
}

// Load loads configuration from defaults, the settings files and the environment.
// Missing settings files are not an error; the environment always wins.
func Load() (*Config, error) {
	cfg := Default()

	if dir := os.Getenv("SETTINGS_DIR"); dir != "" {
		cfg.SettingsDir = dir
	}

	if err := loadYAML(filepath.Join(cfg.SettingsDir, "beacon.yaml"), cfg); err != nil {
		return nil, err
	}

	secrets, err := loadBackendSecrets(filepath.Join(cfg.SettingsDir, "secrets", "backend.yaml"))
	if err != nil {
		return nil, err
	}
	if secrets != nil && secrets.APIKey != "" {
		cfg.Backend.APIKey = secrets.APIKey
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 1
	}

	return cfg, nil
}

// loadYAML overlays the YAML file at path onto cfg
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return nil
}

// loadBackendSecrets loads the backend API key from a YAML file
func loadBackendSecrets(path string) (*BackendConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg BackendConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Backend.URL, "BACKEND_URL")
	setString(&cfg.Backend.SessionID, "BACKEND_SESSION_ID")
	setString(&cfg.Backend.APIKey, "BACKEND_API_KEY")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.StaticDir, "STATIC_DIR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.DBPath, "DB_PATH")

	if err := setDuration(&cfg.Backend.Timeout, "BACKEND_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HealthInterval, "HEALTH_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Simulator.ChunkInterval, "SIMULATOR_CHUNK_INTERVAL"); err != nil {
		return err
	}

	if v := os.Getenv("SIMULATOR"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SIMULATOR %q: %w", v, err)
		}
		cfg.Simulator.Enabled = enabled
	}

	if v := os.Getenv("UPLOAD_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid UPLOAD_CONCURRENCY %q: %w", v, err)
		}
		cfg.UploadConcurrency = n
	}

	return nil
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setDuration(target *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*target = d
	return nil
}
