package bootstrap

import (
	"fmt"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
	"github.com/jonesrussell/north-cloud/categorizer/internal/matcher"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
	"github.com/jonesrussell/north-cloud/categorizer/internal/processor"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/categorizer/internal/telemetry"
)

// EngineComponents is a loaded taxonomy and the engine compiled from it.
type EngineComponents struct {
	Taxonomy  *taxonomy.Taxonomy
	Automaton *matcher.Automaton
	Engine    *classifier.Engine
}

// LoadTaxonomy reads and validates the configured taxonomy, logging lint findings.
func LoadTaxonomy(path string, logger infralogger.Logger) (*taxonomy.Taxonomy, error) {
	t, err := taxonomy.Load(path)
	if err != nil {
		return nil, err
	}

	for _, w := range t.Warnings {
		logger.Warn("Taxonomy warning", infralogger.String("path", path), infralogger.String("warning", w))
	}
	for _, f := range taxonomy.Lint(t) {
		logger.Warn("Taxonomy finding", infralogger.String("path", path), infralogger.String("finding", f.String()))
	}

	logger.Info("Taxonomy loaded",
		infralogger.String("path", path),
		infralogger.Int("categories", len(t.Categories)),
		infralogger.Int("patterns", t.PatternCount()),
		infralogger.String("fallback", t.Fallback),
	)
	return t, nil
}

// BuildEngine loads the taxonomy and compiles the automaton and engine.
// tel may be nil.
func BuildEngine(cfg *config.Config, tel *telemetry.Provider, logger infralogger.Logger) (*EngineComponents, error) {
	t, err := LoadTaxonomy(cfg.Taxonomy.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	return NewEngine(t, cfg, tel, logger)
}

// NewEngine compiles t into an engine using the classification and noise settings of cfg.
func NewEngine(
	t *taxonomy.Taxonomy, cfg *config.Config, tel *telemetry.Provider, logger infralogger.Logger,
) (*EngineComponents, error) {
	automaton, err := matcher.Build(t)
	if err != nil {
		return nil, fmt.Errorf("build automaton: %w", err)
	}

	categorizer := classifier.NewCategorizer(automaton, t.Fallback, cfg.Classification.Config)
	opts := []classifier.EngineOption{classifier.WithErrorCategory(cfg.Classification.ErrorCategory)}
	if tel != nil {
		opts = append(opts, classifier.WithRecorder(tel))
	}
	engine := classifier.NewEngine(categorizer, noise.New(cfg.Noise), logger, opts...)

	logger.Info("Classification engine initialized",
		infralogger.Int("states", automaton.NumStates()),
		infralogger.Int("entries", automaton.NumEntries()),
		infralogger.String("boundary", string(cfg.Classification.Boundary)),
		infralogger.String("dedup", string(cfg.Classification.Dedup)),
	)

	return &EngineComponents{Taxonomy: t, Automaton: automaton, Engine: engine}, nil
}

// NewProcessor builds a batch processor over store.
func NewProcessor(
	store processor.Store, engine *classifier.Engine, cfg *config.Config, tel *telemetry.Provider, logger infralogger.Logger,
) *processor.Processor {
	var pt processor.Telemetry
	if tel != nil {
		pt = tel
	}
	return processor.New(store, engine, cfg.Processor, pt, logger)
}
