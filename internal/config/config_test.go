// Package config_test tests the configuration loading for the phonemizer-service.
package config_test

import (
	"testing"
	"time"

	"github.com/book-expert/phonemizer-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
phonemize_subject = "text.phonemize"
stats_subject = "text.phonemize.stats"
queue_group = "phonemizers"
object_store_bucket = "TEXT_FILES"

[phonemizer]
espeak_binary = "/usr/bin/espeak-ng"
recycle_threshold = 25
recycle_mode = "eager"
default_language = "b"
timeout_seconds = 10

[ops]
listen_addr = ":9100"
warmup_seconds = 5

[paths]
base_logs_dir = "/var/log/phonemizer"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "text.phonemize", cfg.NATS.PhonemizeSubject)
	assert.Equal(t, "text.phonemize.stats", cfg.NATS.StatsSubject)
	assert.Equal(t, "phonemizers", cfg.NATS.QueueGroup)
	assert.Equal(t, "TEXT_FILES", cfg.NATS.ObjectStoreBucket)
	assert.Equal(t, "/usr/bin/espeak-ng", cfg.Phonemizer.EspeakBinary)
	assert.Equal(t, 25, cfg.Phonemizer.RecycleThreshold)
	assert.Equal(t, "eager", cfg.Phonemizer.RecycleMode)
	assert.Equal(t, "b", cfg.Phonemizer.DefaultLanguage)
	assert.Equal(t, 10*time.Second, cfg.Phonemizer.Timeout())
	assert.Equal(t, ":9100", cfg.Ops.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Ops.Warmup())
	assert.Equal(t, "/var/log/phonemizer", cfg.Paths.BaseLogsDir)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.DefaultNATSURL, cfg.NATS.URL)
	assert.Equal(t, config.DefaultPhonemizeSubject, cfg.NATS.PhonemizeSubject)
	assert.Equal(t, config.DefaultStatsSubject, cfg.NATS.StatsSubject)
	assert.Equal(t, config.DefaultObjectStoreBucket, cfg.NATS.ObjectStoreBucket)
	assert.Equal(t, config.DefaultEspeakBinary, cfg.Phonemizer.EspeakBinary)
	assert.Equal(t, 50, cfg.Phonemizer.RecycleThreshold)
	assert.Equal(t, "lazy", cfg.Phonemizer.RecycleMode)
	assert.Equal(t, config.DefaultLanguage, cfg.Phonemizer.DefaultLanguage)
	assert.Equal(t, 30*time.Second, cfg.Phonemizer.Timeout())
	assert.Equal(t, 60*time.Second, cfg.Ops.Warmup())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "negative threshold",
			mutate:  func(cfg *config.Config) { cfg.Phonemizer.RecycleThreshold = -1 },
			wantErr: config.ErrNegativeThreshold,
		},
		{
			name:    "unknown mode",
			mutate:  func(cfg *config.Config) { cfg.Phonemizer.RecycleMode = "never" },
			wantErr: config.ErrUnknownRecycleMode,
		},
		{
			name:    "negative timeout",
			mutate:  func(cfg *config.Config) { cfg.Phonemizer.TimeoutSeconds = -3 },
			wantErr: config.ErrNegativeTimeout,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var cfg config.Config

			cfg.ApplyDefaults()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}
}
