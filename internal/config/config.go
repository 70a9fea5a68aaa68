// Package config provides configuration management for the research digest service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research digest service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Pipeline contains coordinator settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Registry contains workflow registry settings.
	Registry RegistryConfig `mapstructure:"registry"`
	// Mirror contains optional durable mirror settings.
	Mirror MirrorConfig `mapstructure:"mirror"`
	// Sources contains paper source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Storage contains upload and audio artifact directories.
	Storage StorageConfig `mapstructure:"storage"`
	// Stream contains progress stream settings.
	Stream StreamConfig `mapstructure:"stream"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP server port (default: 8080).
	Port int `mapstructure:"port"`
	// ReadTimeout is the maximum duration for reading the request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response.
	// Progress streams lift this deadline and are bounded by
	// stream.max_duration instead.
	// Must be long enough for progress streams to run to completion.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the HTTP server bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// PipelineConfig holds pipeline coordinator configuration.
type PipelineConfig struct {
	// MaxPapers is the default maximum number of papers fetched per
	// search workflow when the request does not specify one.
	MaxPapers int `mapstructure:"max_papers"`
	// MilestoneDelay is an optional pause after each progress milestone,
	// making progress visible to pollers during fast runs. Zero disables it.
	MilestoneDelay time.Duration `mapstructure:"milestone_delay"`
}

// RegistryConfig holds workflow registry configuration.
type RegistryConfig struct {
	// MaxRecords bounds the number of retained workflow records.
	// The oldest terminal records are evicted past this cap.
	MaxRecords int `mapstructure:"max_records"`
}

// MirrorConfig holds durable workflow mirror configuration.
type MirrorConfig struct {
	// Enabled controls whether workflow snapshots are mirrored to disk.
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite database file path.
	Path string `mapstructure:"path"`
}

// SourcesConfig holds paper source API configurations.
type SourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
}

// SourceConfig holds configuration for a single paper source API.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// StorageConfig holds local artifact directories.
type StorageConfig struct {
	// UploadsDir is where uploaded files are written before extraction.
	UploadsDir string `mapstructure:"uploads_dir"`
	// AudioDir is where narration artifacts are written.
	AudioDir string `mapstructure:"audio_dir"`
}

// StreamConfig holds progress stream configuration.
type StreamConfig struct {
	// SampleInterval is how often the stream samples the registry.
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	// GraceDelay is the pause after the terminal snapshot before close,
	// giving the client time to process the final update.
	GraceDelay time.Duration `mapstructure:"grace_delay"`
	// MaxDuration is the maximum time a stream may remain open.
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/research-digest")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Pipeline defaults
	v.SetDefault("pipeline.max_papers", 10)
	v.SetDefault("pipeline.milestone_delay", "0s")

	// Registry defaults
	v.SetDefault("registry.max_records", 1024)

	// Mirror defaults
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.path", "research_digest.db")

	// Source defaults
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 3.0)
	v.SetDefault("sources.arxiv.max_results", 10)

	// Storage defaults
	v.SetDefault("storage.uploads_dir", "uploads")
	v.SetDefault("storage.audio_dir", "audio")

	// Stream defaults
	v.SetDefault("stream.sample_interval", "1s")
	v.SetDefault("stream.grace_delay", "1s")
	v.SetDefault("stream.max_duration", "4h")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Pipeline.MaxPapers < 1 {
		return fmt.Errorf("pipeline.max_papers must be positive, got %d", c.Pipeline.MaxPapers)
	}
	if c.Registry.MaxRecords < 1 {
		return fmt.Errorf("registry.max_records must be positive, got %d", c.Registry.MaxRecords)
	}
	if c.Mirror.Enabled && c.Mirror.Path == "" {
		return errors.New("mirror.path is required when mirror.enabled is true")
	}
	if c.Sources.ArXiv.Enabled {
		if c.Sources.ArXiv.BaseURL == "" {
			return errors.New("sources.arxiv.base_url is required when the source is enabled")
		}
		if c.Sources.ArXiv.RateLimit <= 0 {
			return fmt.Errorf("sources.arxiv.rate_limit must be positive, got %f", c.Sources.ArXiv.RateLimit)
		}
	}
	if c.Stream.SampleInterval <= 0 {
		return fmt.Errorf("stream.sample_interval must be positive, got %s", c.Stream.SampleInterval)
	}
	if c.Stream.MaxDuration <= 0 {
		return fmt.Errorf("stream.max_duration must be positive, got %s", c.Stream.MaxDuration)
	}
	return nil
}
