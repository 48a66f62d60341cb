// Package config provides the configuration structure for the phonemizer-service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Default values applied to unset fields.
const (
	DefaultNATSURL           = "nats://127.0.0.1:4222"
	DefaultPhonemizeSubject  = "phonemize"
	DefaultStatsSubject      = "phonemize.stats"
	DefaultObjectStoreBucket = "PHONEMIZER_TEXT"
	DefaultQueueGroup        = "phonemizer-workers"
	DefaultEspeakBinary      = "espeak-ng"
	DefaultRecycleThreshold  = 50
	DefaultRecycleMode       = "lazy"
	DefaultTimeoutSeconds    = 30
	DefaultListenAddr        = ":8880"
	DefaultWarmupSeconds     = 60
	DefaultLanguage          = "a"
)

var (
	// ErrNegativeThreshold indicates a negative recycle threshold.
	ErrNegativeThreshold = errors.New("recycle_threshold must be non-negative")
	// ErrUnknownRecycleMode indicates a recycle mode other than lazy or eager.
	ErrUnknownRecycleMode = errors.New("recycle_mode must be 'lazy' or 'eager'")
	// ErrNegativeTimeout indicates a negative timeout.
	ErrNegativeTimeout = errors.New("timeout_seconds must be non-negative")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL               string `toml:"url"`
	PhonemizeSubject  string `toml:"phonemize_subject"`
	StatsSubject      string `toml:"stats_subject"`
	QueueGroup        string `toml:"queue_group"`
	ObjectStoreBucket string `toml:"object_store_bucket"`
}

// PhonemizerConfig holds the engine and recycling configuration.
type PhonemizerConfig struct {
	EspeakBinary     string `toml:"espeak_binary"`
	RecycleThreshold int    `toml:"recycle_threshold"`
	RecycleMode      string `toml:"recycle_mode"`
	DefaultLanguage  string `toml:"default_language"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// OpsConfig holds the configuration of the metrics and health endpoint.
type OpsConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	WarmupSeconds int    `toml:"warmup_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Phonemizer PhonemizerConfig `toml:"phonemizer"`
	Ops        OpsConfig        `toml:"ops"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads, defaults and validates the configuration for the phonemizer-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields. A zero recycle threshold is treated as unset.
func (c *Config) ApplyDefaults() {
	setDefault(&c.NATS.URL, DefaultNATSURL)
	setDefault(&c.NATS.PhonemizeSubject, DefaultPhonemizeSubject)
	setDefault(&c.NATS.StatsSubject, DefaultStatsSubject)
	setDefault(&c.NATS.QueueGroup, DefaultQueueGroup)
	setDefault(&c.NATS.ObjectStoreBucket, DefaultObjectStoreBucket)
	setDefault(&c.Phonemizer.EspeakBinary, DefaultEspeakBinary)
	setDefault(&c.Phonemizer.RecycleMode, DefaultRecycleMode)
	setDefault(&c.Phonemizer.DefaultLanguage, DefaultLanguage)
	setDefault(&c.Ops.ListenAddr, DefaultListenAddr)

	if c.Phonemizer.RecycleThreshold == 0 {
		c.Phonemizer.RecycleThreshold = DefaultRecycleThreshold
	}

	if c.Phonemizer.TimeoutSeconds == 0 {
		c.Phonemizer.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Ops.WarmupSeconds == 0 {
		c.Ops.WarmupSeconds = DefaultWarmupSeconds
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Phonemizer.RecycleThreshold < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeThreshold, c.Phonemizer.RecycleThreshold)
	}

	if c.Phonemizer.RecycleMode != "lazy" && c.Phonemizer.RecycleMode != "eager" {
		return fmt.Errorf("%w: got '%s'", ErrUnknownRecycleMode, c.Phonemizer.RecycleMode)
	}

	if c.Phonemizer.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeTimeout, c.Phonemizer.TimeoutSeconds)
	}

	return nil
}

// Timeout returns the per-request timeout.
func (c *PhonemizerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Warmup returns the health check warm-up period.
func (c *OpsConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupSeconds) * time.Second
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
