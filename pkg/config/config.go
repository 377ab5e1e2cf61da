// Package config holds the file-backed settings for the discovery-chat
// pipeline: stream timeouts, checkpoint cadence, persistence paths and the
// optional Redis Streams transport.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// IdleTimeout is how long a stream may stay silent before failing.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// CheckpointEvery is the completed-cycle count between checkpoint
	// builds.
	CheckpointEvery int `yaml:"checkpoint_every"`

	// SurfaceCheckpoints publishes built checkpoint sections on the event
	// stream instead of tracking them silently.
	SurfaceCheckpoints bool `yaml:"surface_checkpoints"`

	// DBPath is the sqlite file for turns and insights. Empty means
	// in-memory stores.
	DBPath string `yaml:"db_path"`

	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	LogLevel string `yaml:"log_level"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional Redis Streams transport.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

func Default() Config {
	return Config{
		IdleTimeout:     60 * time.Second,
		CheckpointEvery: 5,
		LogLevel:        "info",
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Group:    "ideate",
			Consumer: "ideate-1",
		},
	}
}

// Load reads a yaml file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 5
	}
	return cfg, nil
}
