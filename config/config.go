package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SentinelScan SentinelScanConfig `yaml:"sentinelscan"`
}

// SentinelScanConfig is the project configuration.
type SentinelScanConfig struct {
	Backend   BackendConfig   `yaml:"backend"`
	Transport TransportConfig `yaml:"transport"`
	History   HistoryConfig   `yaml:"history"`
	Slack     SlackConfig     `yaml:"slack"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BackendConfig locates the sentinel backend.
type BackendConfig struct {
	BaseURL    string            `yaml:"base_url"`
	StreamPath string            `yaml:"stream_path"`
	PollPath   string            `yaml:"poll_path"`
	Timeout    time.Duration     `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers"`
}

// TransportConfig selects the live delivery mechanism.
type TransportConfig struct {
	Mode         string        `yaml:"mode"` // stream|poll
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HistoryConfig controls terminal scan persistence.
type HistoryConfig struct {
	Dir   string      `yaml:"dir"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls the Redis history layer.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SlackConfig controls high-severity detection alerts.
type SlackConfig struct {
	WebhookURL  string        `yaml:"webhook_url"`
	MinSeverity string        `yaml:"min_severity"`
	Channel     string        `yaml:"channel"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
