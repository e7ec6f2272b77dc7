// Package common provides shared utilities for command implementations.
package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/profiling"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
	"github.com/jonesrussell/north-cloud/categorizer/internal/telemetry"
)

// GlobalFlags are the root persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath   string
	TaxonomyPath string
	BatchSize    int
	Workers      int
	Debug        bool
}

// Flags holds the parsed root flags.
var Flags GlobalFlags

// The default Prometheus registry accepts each metric once per process.
var (
	telemetryOnce    sync.Once
	defaultTelemetry *telemetry.Provider
)

func processTelemetry() *telemetry.Provider {
	telemetryOnce.Do(func() {
		defaultTelemetry = telemetry.NewProvider()
	})
	return defaultTelemetry
}

// RegisterFlags binds the persistent flags on root.
func RegisterFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&Flags.ConfigPath, "config", "", "config file (default is $CONFIG_PATH or ./config.yml)")
	pf.StringVar(&Flags.TaxonomyPath, "taxonomy", "", "taxonomy file (overrides taxonomy.path)")
	pf.IntVar(&Flags.BatchSize, "batch-size", 0, "rows per batch transaction (overrides processor.batch_size)")
	pf.IntVar(&Flags.Workers, "workers", 0, "concurrent batch workers (overrides processor.workers)")
	pf.BoolVar(&Flags.Debug, "debug", false, "enable debug logging")
}

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Config    *config.Config
	Logger    infralogger.Logger
	Telemetry *telemetry.Provider
	Profiler  *profiling.Profiler
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads configuration, applies the root flag overrides and creates the logger.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := bootstrap.LoadConfig(Flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, Flags)

	logger, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	deps := &CommandDeps{
		Config:    cfg,
		Logger:    logger,
		Telemetry: processTelemetry(),
	}
	if validateErr := deps.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", validateErr)
	}

	deps.Profiler, err = bootstrap.StartProfiling(cfg, logger)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// Close stops the profilers and flushes the logger.
func (d *CommandDeps) Close() {
	if err := d.Profiler.Stop(); err != nil {
		d.Logger.Warn("Failed to stop profiler", infralogger.Error(err))
	}
	_ = d.Logger.Sync()
}

func applyFlags(cfg *config.Config, f GlobalFlags) {
	if f.TaxonomyPath != "" {
		cfg.Taxonomy.Path = f.TaxonomyPath
	}
	if f.BatchSize > 0 {
		cfg.Processor.BatchSize = f.BatchSize
	}
	if f.Workers > 0 {
		cfg.Processor.Workers = f.Workers
	}
	if f.Debug {
		cfg.Service.Debug = true
		cfg.Server.Debug = true
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
