package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSteps  = 40
	DefaultNamespace = "pathquest:"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Driver    string `yaml:"driver"`
		Path      string `yaml:"path"`
		Namespace string `yaml:"namespace"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		Path    string `yaml:"path"`
		Catalog string `yaml:"catalog"`
		TTL     string `yaml:"ttl"`
	} `yaml:"content"`
	Game struct {
		DefaultMaxSteps int    `yaml:"default_max_steps"`
		Seed            int64  `yaml:"seed"`
		NoticeTTL       string `yaml:"notice_ttl"`
	} `yaml:"game"`
	// Codes maps a secret token to a gate action name, e.g. "admin" or "cloze:<id>".
	Codes map[string]string `yaml:"codes"`
}

// Default returns a config usable without any file on disk.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Storage.Driver = "file"
	cfg.Storage.Path = "pathquest-state.json"
	cfg.Storage.Namespace = DefaultNamespace
	cfg.Content.Catalog = "default"
	cfg.Game.DefaultMaxSteps = DefaultMaxSteps
	cfg.Game.NoticeTTL = "3s"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Game.DefaultMaxSteps < 1 {
		cfg.Game.DefaultMaxSteps = DefaultMaxSteps
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = DefaultNamespace
	}
	return cfg, nil
}

// ApplyEnv overrides config values from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("CONTENT_PATH"); v != "" {
		cfg.Content.Path = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
