// Package config holds the categorizer configuration file layout.
package config

import (
	"errors"
	"fmt"

	infraconfig "github.com/jonesrussell/north-cloud/categorizer/infrastructure/config"
	infragin "github.com/jonesrussell/north-cloud/categorizer/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/profiling"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
	"github.com/jonesrussell/north-cloud/categorizer/internal/processor"
)

// Default configuration values.
const (
	defaultServiceName    = "categorizer"
	defaultServiceVersion = "1.0.0"
	defaultConfigPath     = "config.yml"
	defaultTaxonomyPath   = "taxonomy.yml"
	defaultDBHost         = "localhost"
	defaultDBPort         = "5432"
	defaultDBUser         = "postgres"
	defaultDBName         = "encuestas"
	defaultDBSSLMode      = "disable"
	defaultSQLitePath     = "categorizer.db"
)

// Config holds all configuration for the categorizer.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Database       database.Config      `yaml:"database"`
	Logging        infralogger.Config   `yaml:"logging"`
	Taxonomy       TaxonomyConfig       `yaml:"taxonomy"`
	Classification ClassificationConfig `yaml:"classification"`
	Noise          noise.Config         `yaml:"noise"`
	Processor      processor.Config     `yaml:"processor"`
	Discovery      discovery.Config     `yaml:"discovery"`
	Server         infragin.Config      `yaml:"server"`
	Profiling      profiling.Config     `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Debug   bool   `env:"APP_DEBUG" yaml:"debug"`
}

// TaxonomyConfig locates the taxonomy file.
type TaxonomyConfig struct {
	Path string `env:"CATEGORIZER_TAXONOMY" yaml:"path"`
}

// ClassificationConfig holds categorizer tuning plus the error sentinel.
type ClassificationConfig struct {
	classifier.Config `yaml:",inline"`
	ErrorCategory     string `yaml:"error_category"`
}

// Path returns the config file path from CONFIG_PATH or config.yml.
func Path() string {
	return infraconfig.GetConfigPath(defaultConfigPath)
}

// Load loads configuration from the specified path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}
	return cfg, nil
}

// Validate checks values defaults cannot repair.
func (c *Config) Validate() error {
	return errors.Join(
		infraconfig.ValidateOneOf("database.driver", c.Database.Driver, database.DriverPostgres, database.DriverSQLite),
		infraconfig.ValidateRequired("database.table", c.Database.Table),
		infraconfig.ValidateLogLevel(c.Logging.Level),
		infraconfig.ValidateOneOf("logging.format", c.Logging.Format, infralogger.FormatJSON, infralogger.FormatConsole),
		infraconfig.ValidateRequired("taxonomy.path", c.Taxonomy.Path),
		infraconfig.ValidateOneOf("classification.boundary", string(c.Classification.Boundary),
			string(classifier.BoundaryNone), string(classifier.BoundaryPrefix), string(classifier.BoundaryWord)),
		infraconfig.ValidateOneOf("classification.dedup", string(c.Classification.Dedup),
			string(classifier.DedupNone), string(classifier.DedupPattern)),
		infraconfig.ValidateFraction("classification.min_confidence", c.Classification.MinConfidence),
		infraconfig.ValidatePositive("processor.batch_size", c.Processor.BatchSize),
		infraconfig.ValidatePositive("processor.workers", c.Processor.Workers),
		infraconfig.ValidatePositive("processor.max_attempts", c.Processor.MaxAttempts),
		infraconfig.ValidateOneOf("discovery.mode", string(c.Discovery.Mode),
			string(discovery.LabelCategory), string(discovery.LabelOutcome)),
		infraconfig.ValidateFraction("discovery.min_correlation", c.Discovery.MinCorrelation),
		infraconfig.ValidatePositive("discovery.min_support", c.Discovery.MinSupport),
	)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	cfg.Logging.SetDefaults()
	if cfg.Taxonomy.Path == "" {
		cfg.Taxonomy.Path = defaultTaxonomyPath
	}
	cfg.Classification.SetDefaults()
	if cfg.Classification.ErrorCategory == "" {
		cfg.Classification.ErrorCategory = classifier.DefaultErrorCategory
	}
	cfg.Noise.SetDefaults()
	cfg.Processor.SetDefaults()
	cfg.Discovery.SetDefaults()
	cfg.Server.SetDefaults()
	cfg.Profiling.SetDefaults()
	cfg.Server.ServiceName = cfg.Service.Name
	cfg.Server.ServiceVersion = cfg.Service.Version
	if cfg.Service.Debug {
		cfg.Server.Debug = true
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
}

func setDatabaseDefaults(d *database.Config) {
	if d.Driver == "" {
		d.Driver = database.DriverPostgres
	}
	if d.Table == "" {
		d.Table = database.DefaultTable
	}
	if d.Driver == database.DriverSQLite {
		if d.Path == "" {
			d.Path = defaultSQLitePath
		}
		return
	}
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == "" {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.DBName == "" {
		d.DBName = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
}
