package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://www.certificacionsustentable.cl/", cfg.Registry.BaseURL)
	require.True(t, cfg.Registry.RespectRobots)
	require.Equal(t, 10, cfg.HTTP.MaxRetries)
	require.Equal(t, 5, cfg.Pipeline.Concurrency)
	require.Equal(t, "data/staging", cfg.Storage.StagingDir)
	require.Equal(t, "data", cfg.Storage.OutputDir)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout())
	require.Equal(t, time.Second, cfg.BackoffInitial())
	require.Equal(t, 15*time.Second, cfg.BackoffMax())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `registry:
  base_url: https://staging.example.cl/
  respect_robots: false
pipeline:
  concurrency: 2
storage:
  staging_dir: /tmp/ces/staging
  output_dir: /tmp/ces/output
  export_dir: /tmp/ces/exports
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.cl/", cfg.Registry.BaseURL)
	require.False(t, cfg.Registry.RespectRobots)
	require.Equal(t, 2, cfg.Pipeline.Concurrency)
	require.Equal(t, "/tmp/ces/exports", cfg.Storage.ExportDir)
	// Untouched keys keep their defaults.
	require.Equal(t, 10, cfg.HTTP.MaxRetries)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Registry.BaseURL = "" }},
		{"empty user agent", func(c *Config) { c.Registry.UserAgent = "" }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.HTTP.MaxRetries = 0 }},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"empty staging dir", func(c *Config) { c.Storage.StagingDir = "" }},
		{"empty output dir", func(c *Config) { c.Storage.OutputDir = "" }},
		{"both export targets", func(c *Config) {
			c.Storage.ExportBucket = "bucket"
			c.Storage.ExportDir = "/tmp/exports"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
