package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "thirteenf.db", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Database.ConnectAttempts)
	assert.Equal(t, time.Second, cfg.Database.ConnectDelay)
	assert.Equal(t, 2024, cfg.Ingestion.BoundaryYear)
	assert.Equal(t, "file", cfg.Ingestion.ProgressBackend)
	assert.Equal(t, ".txt", cfg.Ingestion.DocumentExt)
	assert.Equal(t, 2014, cfg.Remediation.MinReportYear)
	assert.True(t, cfg.Remediation.DropOptions)
	assert.Equal(t, ',', cfg.Remediation.Comma())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thirteenf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  connect_delay: 250ms
ingestion:
  boundary_year: 2023
  workers: 4
  progress_backend: badger
remediation:
  min_report_year: 0
  drop_options: false
  reference_comma: '\t'
`), 0o644))
	t.Setenv("THIRTEENF_DATABASE_DSN", "postgres://warehouse")
	t.Setenv("THIRTEENF_INGESTION_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://warehouse", cfg.Database.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.ConnectDelay)
	assert.Equal(t, 2023, cfg.Ingestion.BoundaryYear)
	assert.Equal(t, 8, cfg.Ingestion.Workers)
	assert.Equal(t, "badger", cfg.Ingestion.ProgressBackend)
	assert.Equal(t, '\t', cfg.Remediation.Comma())

	steps := cfg.Remediation.Steps()
	assert.Zero(t, steps.MinReportYear)
	assert.False(t, steps.DropOptions)
	assert.True(t, steps.ResolveAmendments)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"dsn", func(c *Config) { c.Database.DSN = "" }},
		{"connect attempts", func(c *Config) { c.Database.ConnectAttempts = 0 }},
		{"boundary year", func(c *Config) { c.Ingestion.BoundaryYear = 24 }},
		{"workers", func(c *Config) { c.Ingestion.Workers = -1 }},
		{"backend", func(c *Config) { c.Ingestion.ProgressBackend = "redis" }},
		{"min report year", func(c *Config) { c.Remediation.MinReportYear = -1 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
