package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SecLog SecLogConfig `yaml:"seclog"`
}

// SecLogConfig is the project configuration.
type SecLogConfig struct {
	Storage     StorageConfig     `yaml:"storage"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Rules       RulesConfig       `yaml:"rules"`
	Input       InputConfig       `yaml:"input"`
	NATS        NATSConfig        `yaml:"nats"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Retention   RetentionConfig   `yaml:"retention"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StorageConfig controls the SQLite database.
type StorageConfig struct {
	Path        string        `yaml:"path" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
}

// PipelineConfig controls the ingest gateway.
type PipelineConfig struct {
	QueueSize     int           `yaml:"queue_size" validate:"gt=0"`
	PollInterval  time.Duration `yaml:"poll_interval" validate:"gt=0"`
	StopGrace     time.Duration `yaml:"stop_grace" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gte=0"`
}

// CorrelationConfig controls detector windows and thresholds.
type CorrelationConfig struct {
	BruteForceWindow    time.Duration `yaml:"brute_force_window" validate:"gt=0"`
	BruteForceThreshold int           `yaml:"brute_force_threshold" validate:"gt=0"`
	MaxPrincipals       int           `yaml:"max_principals" validate:"gt=0"`
	PrivilegeWindow     time.Duration `yaml:"privilege_window" validate:"gt=0"`
	PrivilegeThreshold  int           `yaml:"privilege_threshold" validate:"gt=0"`
	ServiceWindow       time.Duration `yaml:"service_window" validate:"gt=0"`
	ServiceThreshold    int           `yaml:"service_threshold" validate:"gt=0"`
}

// AlertsConfig controls alert triggering and alert sinks.
type AlertsConfig struct {
	CriticalThreatScore int               `yaml:"critical_threat_score" validate:"gte=0,lte=100"`
	Output              AlertOutputConfig `yaml:"output"`
}

// AlertOutputConfig controls where alerts are mirrored besides the database.
type AlertOutputConfig struct {
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// RulesConfig controls Sigma rule tagging.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// InputConfig controls optional queue-based sensor input.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	Key          string        `yaml:"key" validate:"required_if=Enabled true"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// NATSConfig controls event and alert publishing.
type NATSConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url" validate:"required_if=Enabled true"`
	EventSubject string `yaml:"event_subject"`
	AlertSubject string `yaml:"alert_subject"`
}

// SamplerConfig controls system statistics sampling.
type SamplerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	DiskPath string        `yaml:"disk_path"`
}

// RetentionConfig controls periodic cleanup.
type RetentionConfig struct {
	Days     int           `yaml:"days" validate:"gt=0"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// APIConfig controls the query HTTP API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL              string            `yaml:"url" validate:"omitempty,url"`
	Timeout          time.Duration     `yaml:"timeout"`
	Headers          map[string]string `yaml:"headers"`
	FailureThreshold uint32            `yaml:"failure_threshold"`
	OpenTimeout      time.Duration     `yaml:"open_timeout"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
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

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.SecLog

	if c.Storage.Path == "" {
		c.Storage.Path = "data/security_events.db"
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = 5 * time.Second
	}

	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = 10000
	}
	if c.Pipeline.PollInterval <= 0 {
		c.Pipeline.PollInterval = 1 * time.Second
	}
	if c.Pipeline.StopGrace <= 0 {
		c.Pipeline.StopGrace = 1 * time.Second
	}
	if c.Pipeline.SweepInterval == 0 {
		c.Pipeline.SweepInterval = 5 * time.Minute
	}

	if c.Correlation.BruteForceWindow <= 0 {
		c.Correlation.BruteForceWindow = 300 * time.Second
	}
	if c.Correlation.BruteForceThreshold <= 0 {
		c.Correlation.BruteForceThreshold = 5
	}
	if c.Correlation.MaxPrincipals <= 0 {
		c.Correlation.MaxPrincipals = 10000
	}
	if c.Correlation.PrivilegeWindow <= 0 {
		c.Correlation.PrivilegeWindow = 10 * time.Minute
	}
	if c.Correlation.PrivilegeThreshold <= 0 {
		c.Correlation.PrivilegeThreshold = 3
	}
	if c.Correlation.ServiceWindow <= 0 {
		c.Correlation.ServiceWindow = 30 * time.Minute
	}
	if c.Correlation.ServiceThreshold <= 0 {
		c.Correlation.ServiceThreshold = 3
	}

	if c.Alerts.CriticalThreatScore <= 0 {
		c.Alerts.CriticalThreatScore = 80
	}

	if c.Input.Redis.Addr == "" {
		c.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Input.Redis.Key == "" {
		c.Input.Redis.Key = "security_events"
	}
	if c.Input.Redis.BlockTimeout == 0 {
		c.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if c.NATS.EventSubject == "" {
		c.NATS.EventSubject = "seclog.events"
	}
	if c.NATS.AlertSubject == "" {
		c.NATS.AlertSubject = "seclog.alerts"
	}

	if c.Sampler.Interval <= 0 {
		c.Sampler.Interval = 10 * time.Second
	}
	if c.Sampler.DiskPath == "" {
		c.Sampler.DiskPath = "/"
	}

	if c.Retention.Days <= 0 {
		c.Retention.Days = 30
	}
	if c.Retention.Interval == 0 {
		c.Retention.Interval = 24 * time.Hour
	}

	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8089"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks field ranges after defaults were applied.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
