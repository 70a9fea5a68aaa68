// Package config provides configuration management for the research digest service.
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// Pipeline defaults
	assert.Equal(t, 10, cfg.Pipeline.MaxPapers)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.MilestoneDelay)

	// Registry defaults
	assert.Equal(t, 1024, cfg.Registry.MaxRecords)

	// Mirror defaults
	assert.False(t, cfg.Mirror.Enabled)

	// Source defaults
	assert.True(t, cfg.Sources.ArXiv.Enabled)
	assert.Equal(t, "https://export.arxiv.org/api", cfg.Sources.ArXiv.BaseURL)
	assert.Equal(t, 3.0, cfg.Sources.ArXiv.RateLimit)

	// Stream defaults
	assert.Equal(t, time.Second, cfg.Stream.SampleInterval)
	assert.Equal(t, time.Second, cfg.Stream.GraceDelay)
	assert.Equal(t, 4*time.Hour, cfg.Stream.MaxDuration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DIGEST_SERVER_PORT", "9191")
	t.Setenv("DIGEST_LOGGING_LEVEL", "debug")
	t.Setenv("DIGEST_PIPELINE_MAX_PAPERS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Pipeline.MaxPapers)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero max papers", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.MaxPapers = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("mirror enabled without path", func(t *testing.T) {
		cfg := base()
		cfg.Mirror.Enabled = true
		cfg.Mirror.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("arxiv enabled without base url", func(t *testing.T) {
		cfg := base()
		cfg.Sources.ArXiv.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive sample interval", func(t *testing.T) {
		cfg := base()
		cfg.Stream.SampleInterval = 0
		assert.Error(t, cfg.Validate())
	})
}
