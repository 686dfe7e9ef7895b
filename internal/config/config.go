// Package config provides configuration management for clipforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultMaxWorkers         = 2
	defaultQueueCapacity      = 32
	defaultProgressInterval   = 250 * time.Millisecond
	defaultStuckCheckInterval = 60 * time.Second
	defaultJobRetention       = 24 * time.Hour

	defaultTranscriptionTimeout = 20 * time.Minute
	defaultEnrichmentTimeout    = 10 * time.Minute
	defaultClipRenderTimeout    = 15 * time.Minute

	defaultWebhookAttempts = 3
	defaultWebhookTimeout  = 10 * time.Second
	defaultWebhookMaxBody  = 1024 * 1024 // 1 MiB

	defaultDiscoveryMinFileSize = 1024 * 1024 // ignore stubs under 1 MiB
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Naming    NamingConfig    `mapstructure:"naming"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
//
// With the sqlite driver the process must be the only writer of the database
// file; WAL mode and a busy timeout are applied automatically. The postgres
// and mysql drivers permit multiple writers and use the configured pool.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds filesystem layout configuration.
type StorageConfig struct {
	// Root is the project root under which all artifacts live.
	Root string `mapstructure:"root"`
	// LibraryDir is where source video files are discovered, relative to Root.
	LibraryDir string `mapstructure:"library_dir"`
	// OutputDir is the per-episode artifact tree, relative to Root.
	OutputDir string `mapstructure:"output_dir"`
	// TranscriptDir holds transcript files, relative to Root.
	TranscriptDir string `mapstructure:"transcript_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PipelineConfig holds job queue and stage execution configuration.
type PipelineConfig struct {
	// MaxWorkers is the number of concurrent pipeline workers.
	MaxWorkers int `mapstructure:"max_workers"`
	// QueueCapacity bounds the number of queued (not yet running) jobs.
	// Submissions beyond this are rejected.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// StageWeights maps stage names to their share of overall job progress.
	StageWeights map[string]float64 `mapstructure:"stage_weights"`
	// StageTimeouts maps stage names to soft timeouts used by stuck detection.
	// A stage exceeding its timeout is flagged, never killed.
	StageTimeouts map[string]time.Duration `mapstructure:"stage_timeouts"`
	// ProgressInterval is the minimum interval between progress updates
	// delivered to a job. More frequent updates are coalesced.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	// StuckCheckInterval is how often running jobs are scanned for stalls.
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval"`
	// JobRetention is how long terminal jobs are kept before being purged.
	JobRetention time.Duration `mapstructure:"job_retention"`
}

// WebhookConfig holds completion webhook delivery configuration.
type WebhookConfig struct {
	// Attempts is the total number of delivery attempts per webhook.
	Attempts int `mapstructure:"attempts"`
	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxBody caps the result payload size; larger results are truncated.
	// Supports human-readable values like "1MB".
	MaxBody ByteSize `mapstructure:"max_body"`
}

// NamingConfig holds show name mapping configuration.
type NamingConfig struct {
	// ShowMappings maps lowercased show name variants to canonical folder names.
	ShowMappings map[string]string `mapstructure:"show_mappings"`
}

// PathsConfig holds path translation configuration.
type PathsConfig struct {
	// MountAliases maps container-style path prefixes to host paths,
	// e.g. "/data" -> "./data".
	MountAliases map[string]string `mapstructure:"mount_aliases"`
}

// DiscoveryConfig holds library scan configuration.
type DiscoveryConfig struct {
	// ScanCron is an optional 6-field cron expression for periodic rescans.
	// Empty disables scheduled scanning; scans can still be triggered via API.
	ScanCron string `mapstructure:"scan_cron"`
	// Extensions lists the file extensions considered video sources.
	Extensions []string `mapstructure:"extensions"`
	// MinFileSize excludes files smaller than this from discovery.
	MinFileSize ByteSize `mapstructure:"min_file_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CLIPFORGE_ and use underscores
// for nesting. Example: CLIPFORGE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/clipforge")
		v.AddConfigPath("$HOME/.clipforge")
	}

	v.SetEnvPrefix("CLIPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "clipforge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.library_dir", "library")
	v.SetDefault("storage.output_dir", "outputs")
	v.SetDefault("storage.transcript_dir", "transcripts")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Pipeline defaults
	v.SetDefault("pipeline.max_workers", defaultMaxWorkers)
	v.SetDefault("pipeline.queue_capacity", defaultQueueCapacity)
	v.SetDefault("pipeline.stage_weights", map[string]float64{
		"transcription":  0.55,
		"enrichment":     0.30,
		"rendering":      0.05,
		"clip_discovery": 0.10,
	})
	v.SetDefault("pipeline.stage_timeouts", map[string]time.Duration{
		"transcription": defaultTranscriptionTimeout,
		"enrichment":    defaultEnrichmentTimeout,
		"clip_render":   defaultClipRenderTimeout,
	})
	v.SetDefault("pipeline.progress_interval", defaultProgressInterval)
	v.SetDefault("pipeline.stuck_check_interval", defaultStuckCheckInterval)
	v.SetDefault("pipeline.job_retention", defaultJobRetention)

	// Webhook defaults
	v.SetDefault("webhook.attempts", defaultWebhookAttempts)
	v.SetDefault("webhook.timeout", defaultWebhookTimeout)
	v.SetDefault("webhook.max_body", defaultWebhookMaxBody)

	// Naming defaults
	v.SetDefault("naming.show_mappings", map[string]string{})

	// Paths defaults
	v.SetDefault("paths.mount_aliases", map[string]string{})

	// Discovery defaults
	v.SetDefault("discovery.scan_cron", "")
	v.SetDefault("discovery.extensions", []string{".mp4", ".mkv", ".mov", ".m4v", ".webm"})
	v.SetDefault("discovery.min_file_size", defaultDiscoveryMinFileSize)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("pipeline.max_workers must be at least 1")
	}
	if c.Pipeline.QueueCapacity < 1 {
		return fmt.Errorf("pipeline.queue_capacity must be at least 1")
	}
	var totalWeight float64
	for stage, w := range c.Pipeline.StageWeights {
		if w < 0 {
			return fmt.Errorf("pipeline.stage_weights.%s must be non-negative", stage)
		}
		totalWeight += w
	}
	if len(c.Pipeline.StageWeights) > 0 && totalWeight <= 0 {
		return fmt.Errorf("pipeline.stage_weights must sum to a positive value")
	}

	if c.Webhook.Attempts < 1 {
		return fmt.Errorf("webhook.attempts must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LibraryPath returns the full path to the source library directory.
func (c *StorageConfig) LibraryPath() string {
	return fmt.Sprintf("%s/%s", c.Root, c.LibraryDir)
}

// OutputPath returns the full path to the artifact output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.Root, c.OutputDir)
}

// TranscriptPath returns the full path to the transcript directory.
func (c *StorageConfig) TranscriptPath() string {
	return fmt.Sprintf("%s/%s", c.Root, c.TranscriptDir)
}
