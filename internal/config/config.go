package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	// RedisURL enables the session snapshot mirror when set.
	RedisURL string `yaml:"redis_url"`
	// DatabaseURL enables the finished-game archive when set.
	DatabaseURL string `yaml:"database_url"`
	// StatsFile is the flat JSON stats table, rewritten in full on every
	// mutation.
	StatsFile string `yaml:"stats_file"`
	// MessageDir optionally overrides the embedded message catalog.
	MessageDir string `yaml:"message_dir"`
}

// Load reads the optional YAML file named by DUEL_CONFIG, then lets the
// environment override individual values.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		StatsFile: filepath.Join("data", "stats.json"),
	}

	if path := strings.TrimSpace(os.Getenv("DUEL_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DUEL_STATS_FILE")); v != "" {
		cfg.StatsFile = v
	}
	if v := strings.TrimSpace(os.Getenv("DUEL_MESSAGE_DIR")); v != "" {
		cfg.MessageDir = v
	}

	if strings.TrimSpace(cfg.StatsFile) == "" {
		return nil, errors.New("stats file path is required")
	}
	return cfg, nil
}
