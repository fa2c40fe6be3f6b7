// Package config loads cumulus settings from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Blob backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Workers WorkersConfig `yaml:"workers"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	UploadRate     int           `yaml:"upload_rate"`
	UploadWindow   time.Duration `yaml:"upload_window"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type StorageConfig struct {
	// LimitBytes is the demo user's quota.
	LimitBytes  int64  `yaml:"limit_bytes"`
	DataDir     string `yaml:"data_dir"`
	BlobBackend string `yaml:"blob_backend"`
	Compress    bool   `yaml:"compress"`
	// DataShards and ParityShards stripe blobs across several backends
	// with erasure coding. Zero DataShards stores each blob whole.
	DataShards   int `yaml:"data_shards"`
	ParityShards int `yaml:"parity_shards"`
	// Secret enables encryption of blobs at rest when non-empty.
	Secret string `yaml:"secret"`
}

type WorkersConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadBytes: 100 << 20, // 100 MB
			UploadRate:     30,
			UploadWindow:   time.Minute,
			ShutdownGrace:  10 * time.Second,
		},
		Storage: StorageConfig{
			LimitBytes:  3 << 40, // 3 TiB
			DataDir:     "data",
			BlobBackend: BackendMemory,
		},
		Workers: WorkersConfig{
			ReconcileInterval: 5 * time.Minute,
			SweepInterval:     10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := lookup("CUMULUS_DATA_DIR"); ok && v != "" {
		c.Storage.DataDir = v
	}
	if v, ok := lookup("CUMULUS_BLOB_BACKEND"); ok && v != "" {
		c.Storage.BlobBackend = v
	}
	if v, ok := lookup("CUMULUS_BLOB_SECRET"); ok {
		c.Storage.Secret = v
	}
	if v, ok := lookup("CUMULUS_LIMIT_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CUMULUS_LIMIT_BYTES: %w", err)
		}
		c.Storage.LimitBytes = n
	}
	if v, ok := lookup("CUMULUS_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.UploadRate < 0 {
		errs = append(errs, errors.New("server.upload_rate must not be negative"))
	}
	if c.Server.UploadRate > 0 && c.Server.UploadWindow <= 0 {
		errs = append(errs, errors.New("server.upload_window must be positive"))
	}
	if c.Storage.LimitBytes < 0 {
		errs = append(errs, errors.New("storage.limit_bytes must not be negative"))
	}
	switch c.Storage.BlobBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.blob_backend %q", c.Storage.BlobBackend))
	}
	if c.Storage.DataShards < 0 || c.Storage.ParityShards < 0 {
		errs = append(errs, errors.New("storage shard counts must not be negative"))
	}
	if c.Storage.DataShards == 0 && c.Storage.ParityShards > 0 {
		errs = append(errs, errors.New("storage.parity_shards requires storage.data_shards"))
	}
	if c.Storage.DataShards+c.Storage.ParityShards > 256 {
		errs = append(errs, errors.New("storage shard counts must total at most 256"))
	}
	if c.Workers.ReconcileInterval < 0 || c.Workers.SweepInterval < 0 {
		errs = append(errs, errors.New("worker intervals must not be negative"))
	}
	return errors.Join(errs...)
}
