package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Identity struct {
		TTL string `yaml:"ttl"`
	} `yaml:"identity"`
	Leaderboard struct {
		ExcludeParticipant string `yaml:"excludeParticipant"`
	} `yaml:"leaderboard"`
	Mirror struct {
		QueueSize int    `yaml:"queueSize"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"mirror"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// DefaultExcludeParticipant is the test/master account hidden from leaderboards.
const DefaultExcludeParticipant = "master@example.com"

// Load reads YAML config from path and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Leaderboard.ExcludeParticipant == "" {
		cfg.Leaderboard.ExcludeParticipant = DefaultExcludeParticipant
	}
	if cfg.Identity.TTL == "" {
		cfg.Identity.TTL = "24h"
	}
	if cfg.Mirror.QueueSize <= 0 {
		cfg.Mirror.QueueSize = 256
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
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
