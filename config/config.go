// Package config loads thirteenf configuration.
//
// Values come from defaults, then an optional YAML file, then environment
// variables. Environment variables use the prefix THIRTEENF_ with dots
// replaced by underscores, e.g. THIRTEENF_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/thirteenf/progress"
	"github.com/poiesic/thirteenf/remediate"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "THIRTEENF"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"    yaml:"database"`
	Paths       PathsConfig       `mapstructure:"paths"       yaml:"paths"`
	Ingestion   IngestionConfig   `mapstructure:"ingestion"   yaml:"ingestion"`
	Remediation RemediationConfig `mapstructure:"remediation" yaml:"remediation"`
	Logging     LoggingConfig     `mapstructure:"logging"     yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"     yaml:"metrics"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"           yaml:"driver"` // "sqlite" or "postgres"
	DSN             string        `mapstructure:"dsn"              yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"   yaml:"max_open_conns"` // 0 = worker count
	ConnectAttempts int           `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"    yaml:"connect_delay"`
}

// PathsConfig locates inputs and state.
type PathsConfig struct {
	BulkDir       string `mapstructure:"bulk_dir"       yaml:"bulk_dir"`
	DocumentDir   string `mapstructure:"document_dir"   yaml:"document_dir"`
	ProgressFile  string `mapstructure:"progress_file"  yaml:"progress_file"`
	ReferenceFile string `mapstructure:"reference_file" yaml:"reference_file"`
	OverridesFile string `mapstructure:"overrides_file" yaml:"overrides_file"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	BoundaryYear    int    `mapstructure:"boundary_year"    yaml:"boundary_year"`
	Workers         int    `mapstructure:"workers"          yaml:"workers"` // 0 = runtime.NumCPU()
	ProgressBackend string `mapstructure:"progress_backend" yaml:"progress_backend"`
	DocumentExt     string `mapstructure:"document_ext"     yaml:"document_ext"`
}

// RemediationConfig selects remediation steps.
type RemediationConfig struct {
	MinReportYear     int    `mapstructure:"min_report_year"     yaml:"min_report_year"` // 0 disables pruning
	DropNoticeFilings bool   `mapstructure:"drop_notice_filings" yaml:"drop_notice_filings"`
	ResolveAmendments bool   `mapstructure:"resolve_amendments"  yaml:"resolve_amendments"`
	DropOptions       bool   `mapstructure:"drop_options"        yaml:"drop_options"`
	ReferenceComma    string `mapstructure:"reference_comma"     yaml:"reference_comma"`
}

// Steps converts the section to a runner configuration.
func (r RemediationConfig) Steps() remediate.Config {
	return remediate.Config{
		MinReportYear:     r.MinReportYear,
		DropNoticeFilings: r.DropNoticeFilings,
		ResolveAmendments: r.ResolveAmendments,
		DropOptions:       r.DropOptions,
	}
}

// Comma returns the reference file delimiter.
func (r RemediationConfig) Comma() rune {
	if r.ReferenceComma == "" {
		return ','
	}
	if r.ReferenceComma == `\t` {
		return '\t'
	}
	return []rune(r.ReferenceComma)[0]
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// MetricsConfig holds metrics output settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // empty disables
}

// Load reads configuration from path, or from defaults and the environment
// alone when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys
// absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "thirteenf.db")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.connect_attempts", 3)
	v.SetDefault("database.connect_delay", time.Second)

	v.SetDefault("paths.bulk_dir", "data/structured")
	v.SetDefault("paths.document_dir", "data/filings")
	v.SetDefault("paths.progress_file", "progress.json")
	v.SetDefault("paths.reference_file", "")
	v.SetDefault("paths.overrides_file", "")

	v.SetDefault("ingestion.boundary_year", 2024)
	v.SetDefault("ingestion.workers", 0)
	v.SetDefault("ingestion.progress_backend", progress.BackendFile)
	v.SetDefault("ingestion.document_ext", ".txt")

	defaults := remediate.DefaultConfig()
	v.SetDefault("remediation.min_report_year", defaults.MinReportYear)
	v.SetDefault("remediation.drop_notice_filings", defaults.DropNoticeFilings)
	v.SetDefault("remediation.resolve_amendments", defaults.ResolveAmendments)
	v.SetDefault("remediation.drop_options", defaults.DropOptions)
	v.SetDefault("remediation.reference_comma", ",")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.textfile", "")
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is empty", ErrInvalidConfig)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("%w: database.max_open_conns must be >= 0", ErrInvalidConfig)
	}
	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("%w: database.connect_attempts must be >= 1", ErrInvalidConfig)
	}
	if c.Ingestion.BoundaryYear < 1993 || c.Ingestion.BoundaryYear > 9999 {
		return fmt.Errorf("%w: ingestion.boundary_year %d", ErrInvalidConfig, c.Ingestion.BoundaryYear)
	}
	if c.Ingestion.Workers < 0 {
		return fmt.Errorf("%w: ingestion.workers must be >= 0", ErrInvalidConfig)
	}
	switch c.Ingestion.ProgressBackend {
	case progress.BackendFile, progress.BackendBadger:
	default:
		return fmt.Errorf("%w: ingestion.progress_backend %q", ErrInvalidConfig, c.Ingestion.ProgressBackend)
	}
	if c.Remediation.MinReportYear < 0 {
		return fmt.Errorf("%w: remediation.min_report_year must be >= 0", ErrInvalidConfig)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
