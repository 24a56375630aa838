// Package config provides configuration management for the ingestion pipeline.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingQuery             = errors.New("source.query is required")
	ErrInvalidPageSize          = errors.New("source.page_size must be between 1 and 100")
	ErrInvalidSortBy            = errors.New("source.sort_by must be one of: publishedAt, relevancy, popularity")
	ErrInvalidMaxPages          = errors.New("source.max_pages must be at least 1")
	ErrInvalidTimeout           = errors.New("source.timeout_sec must be at least 1")
	ErrMissingStreamName        = errors.New("stream.name is required")
	ErrInvalidBatchRecords      = errors.New("stream.max_batch_records must be between 1 and 500")
	ErrInvalidRecordBytes       = errors.New("stream.max_record_bytes must be at least 1")
	ErrInvalidBatchBytes        = errors.New("stream.max_batch_bytes must be at least stream.max_record_bytes")
	ErrInvalidInFlight          = errors.New("stream.max_in_flight_batches must be at least 1")
	ErrInvalidPollInterval      = errors.New("scheduler.poll_interval_sec must be at least 1")
	ErrInvalidLookback          = errors.New("scheduler.lookback_hours must be at least 1")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete pipeline configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Stream    StreamConfig    `yaml:"stream"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retry     RetryPolicy     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig contains search API settings. The API key is deliberately
// absent here: it is a secret and comes from the environment, never the
// config file.
type SourceConfig struct {
	BaseURL     string `yaml:"base_url"`
	Query       string `yaml:"query"`
	SortBy      string `yaml:"sort_by"`
	Language    string `yaml:"language"`
	PageSize    int    `yaml:"page_size"`
	MaxPages    int    `yaml:"max_pages"`
	PageDelayMs int    `yaml:"page_delay_ms"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// Timeout returns the per-request HTTP timeout.
func (s *SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// PageDelay returns the politeness delay between page requests.
func (s *SourceConfig) PageDelay() time.Duration {
	return time.Duration(s.PageDelayMs) * time.Millisecond
}

// StreamConfig contains stream backend settings. Endpoint overrides the
// regional endpoint, e.g. http://localhost:4566 for a local stack.
type StreamConfig struct {
	Name               string `yaml:"name"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	MaxBatchRecords    int    `yaml:"max_batch_records"`
	MaxRecordBytes     int    `yaml:"max_record_bytes"`
	MaxBatchBytes      int    `yaml:"max_batch_bytes"`
	MaxInFlightBatches int    `yaml:"max_in_flight_batches"`
}

// SchedulerConfig contains poll loop settings.
type SchedulerConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	LookbackHours   int `yaml:"lookback_hours"`
}

// PollInterval returns the sleep between ticks.
func (s *SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// Lookback returns how far back each tick's search window reaches.
func (s *SchedulerConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackHours) * time.Hour
}

// RetryPolicy defines retry behavior for both the source client and the
// stream writer.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// Delay calculates the exponential backoff delay for an attempt number,
// capped at MaxDelayMs. Attempt 1 has no delay.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// JitteredDelay returns a uniformly random delay in [0, Delay(attempt)].
// Full jitter spreads retries from concurrent batch submissions so they do
// not hammer the backend in lockstep.
func (rp *RetryPolicy) JitteredDelay(attempt int) time.Duration {
	d := rp.Delay(attempt)
	if d <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(d) + 1))
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, applies defaults, and
// validates the result.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://newsapi.org/v2/everything"
	}

	if c.Source.SortBy == "" {
		c.Source.SortBy = "publishedAt"
	}

	if c.Source.Language == "" {
		c.Source.Language = "en"
	}

	if c.Source.PageSize == 0 {
		c.Source.PageSize = 100
	}

	if c.Source.MaxPages == 0 {
		c.Source.MaxPages = 10
	}

	if c.Source.TimeoutSec == 0 {
		c.Source.TimeoutSec = 30
	}

	if c.Stream.Region == "" {
		c.Stream.Region = "us-east-1"
	}

	if c.Stream.MaxBatchRecords == 0 {
		c.Stream.MaxBatchRecords = 500
	}

	if c.Stream.MaxRecordBytes == 0 {
		c.Stream.MaxRecordBytes = 1 << 20
	}

	if c.Stream.MaxBatchBytes == 0 {
		c.Stream.MaxBatchBytes = 5 << 20
	}

	if c.Stream.MaxInFlightBatches == 0 {
		c.Stream.MaxInFlightBatches = 4
	}

	if c.Scheduler.PollIntervalSec == 0 {
		c.Scheduler.PollIntervalSec = 300
	}

	if c.Scheduler.LookbackHours == 0 {
		c.Scheduler.LookbackHours = 24
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}

	if c.Retry.InitialDelayMs == 0 {
		c.Retry.InitialDelayMs = 500
	}

	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 30000
	}

	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = 2.0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.Query == "" {
		return ErrMissingQuery
	}

	if c.Source.PageSize < 1 || c.Source.PageSize > 100 {
		return ErrInvalidPageSize
	}

	switch c.Source.SortBy {
	case "publishedAt", "relevancy", "popularity":
	default:
		return ErrInvalidSortBy
	}

	if c.Source.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.Source.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Stream.Name == "" {
		return ErrMissingStreamName
	}

	if c.Stream.MaxBatchRecords < 1 || c.Stream.MaxBatchRecords > 500 {
		return ErrInvalidBatchRecords
	}

	if c.Stream.MaxRecordBytes < 1 {
		return ErrInvalidRecordBytes
	}

	if c.Stream.MaxBatchBytes < c.Stream.MaxRecordBytes {
		return ErrInvalidBatchBytes
	}

	if c.Stream.MaxInFlightBatches < 1 {
		return ErrInvalidInFlight
	}

	if c.Scheduler.PollIntervalSec < 1 {
		return ErrInvalidPollInterval
	}

	if c.Scheduler.LookbackHours < 1 {
		return ErrInvalidLookback
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// String returns a string representation of the config, safe to log.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Query: %q, Stream: %s, PollInterval: %s, Lookback: %s}",
		c.Source.Query,
		c.Stream.Name,
		c.Scheduler.PollInterval(),
		c.Scheduler.Lookback(),
	)
}
