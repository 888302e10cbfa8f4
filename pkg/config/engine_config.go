// Package config provides configuration loading for the flow engine
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the structure of the engine.yaml file.
type EngineConfig struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ingest    IngestConfig    `yaml:"ingest"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
}

// SchedulerConfig controls the waiting-execution poller and the daily
// date trigger sweep.
type SchedulerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	SweepCron string        `yaml:"sweep_cron"`
}

// IngestConfig configures the Redis stream that carries lead events
// published by the CRM application.
type IngestConfig struct {
	RedisURL string `yaml:"redis_url"`
	Stream   string `yaml:"stream"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

// WhatsAppConfig configures the WhatsApp gateway used by the send_message
// action.
type WhatsAppConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// DefaultEngineConfig returns the configuration used when no file is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Scheduler: SchedulerConfig{
			Interval:  1 * time.Minute,
			SweepCron: "0 8 * * *",
		},
		Ingest: IngestConfig{
			Stream:   "leadflow:events",
			Group:    "leadflow-engine",
			Consumer: "engine-1",
		},
		WhatsApp: WhatsAppConfig{
			BaseURL: os.Getenv("WHATSAPP_API_URL"),
			APIKey:  os.Getenv("WHATSAPP_API_KEY"),
		},
	}
}

// LoadEngineConfig loads engine configuration from a YAML file. Fields left
// empty in the file keep their defaults.
func LoadEngineConfig(filepath string) (EngineConfig, error) {
	config := DefaultEngineConfig()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return config, nil
}

// LoadEngineConfigOrDefault attempts to load engine config from file, falling
// back to defaults when the file doesn't exist.
func LoadEngineConfigOrDefault(filepath string) EngineConfig {
	if filepath == "" {
		return DefaultEngineConfig()
	}

	config, err := LoadEngineConfig(filepath)
	if err != nil {
		return DefaultEngineConfig()
	}

	return config
}

// ValidateEngineConfig validates the engine configuration.
func ValidateEngineConfig(config EngineConfig) error {
	if config.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}

	if config.Scheduler.SweepCron == "" {
		return fmt.Errorf("scheduler.sweep_cron is required")
	}

	if config.Ingest.RedisURL != "" {
		if config.Ingest.Stream == "" {
			return fmt.Errorf("ingest.stream is required when ingest.redis_url is set")
		}

		if config.Ingest.Group == "" {
			return fmt.Errorf("ingest.group is required when ingest.redis_url is set")
		}
	}

	return nil
}
