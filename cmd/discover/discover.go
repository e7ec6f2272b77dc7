// Package discover implements the keyword discovery command.
package discover

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

const defaultOutput = "proposals.yml"

type discoverFlags struct {
	outputs        []string
	mode           string
	minSupport     int
	minCorrelation float64
	minLift        float64
	maxPerCategory int
	minConfidence  float64
	maxNGram       int
}

// Command returns the discover command.
func Command() *cobra.Command {
	var f discoverFlags

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Propose new taxonomy keywords from the classified corpus",
		Long: `Mine the stored comments for tokens that correlate strongly with one
category (or, with --mode outcome, with the NPS/CSAT outcome) and write a
proposal artifact. Nothing in the store or the taxonomy is modified; review the
proposals and fold them in with "taxonomy merge".

The artifact format follows the file extension: .yml/.yaml (mergeable),
.json, or .xlsx (for review). --out may be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringSliceVarP(&f.outputs, "out", "o", []string{defaultOutput}, "artifact path(s)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "label to correlate against: category or outcome")
	cmd.Flags().IntVar(&f.minSupport, "min-support", 0, "minimum comments containing token and label")
	cmd.Flags().Float64Var(&f.minCorrelation, "min-correlation", 0, "minimum P(label | token)")
	cmd.Flags().Float64Var(&f.minLift, "min-lift", 0, "minimum P(label | token) / P(label)")
	cmd.Flags().IntVar(&f.maxPerCategory, "max-per-category", 0, "maximum candidates per label")
	cmd.Flags().Float64Var(&f.minConfidence, "min-confidence", 0, "stored confidence a comment needs to count as labelled")
	cmd.Flags().IntVar(&f.maxNGram, "max-ngram", 0, "longest word sequence proposed as one candidate")

	return cmd
}

func (f discoverFlags) apply(cfg *discovery.Config) {
	if f.mode != "" {
		cfg.Mode = discovery.LabelMode(f.mode)
	}
	if f.minSupport > 0 {
		cfg.MinSupport = f.minSupport
	}
	if f.minCorrelation > 0 {
		cfg.MinCorrelation = f.minCorrelation
	}
	if f.minLift > 0 {
		cfg.MinLift = f.minLift
	}
	if f.maxPerCategory > 0 {
		cfg.MaxPerLabel = f.maxPerCategory
	}
	if f.minConfidence > 0 {
		cfg.MinConfidence = f.minConfidence
	}
	if f.maxNGram > 0 {
		cfg.MaxNGram = f.maxNGram
	}
}

func run(cmd *cobra.Command, f discoverFlags) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	cfg := deps.Config.Discovery
	f.apply(&cfg)
	if cfg.Mode != discovery.LabelCategory && cfg.Mode != discovery.LabelOutcome {
		return fmt.Errorf("--mode must be %q or %q, got %q", discovery.LabelCategory, discovery.LabelOutcome, cfg.Mode)
	}

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	tax, err := bootstrap.LoadTaxonomy(deps.Config.Taxonomy.Path, deps.Logger)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}

	db, err := bootstrap.SetupDatabase(ctx, deps.Config, tax.Fallback, false, deps.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			deps.Logger.Error("Error closing database connection", infralogger.Error(closeErr))
		}
	}()

	report, err := analyze(ctx, db.Comments, tax, cfg)
	if err != nil {
		return err
	}

	deps.Logger.Info("Discovery complete",
		infralogger.String("mode", string(report.Mode)),
		infralogger.Int("documents", report.Documents),
		infralogger.Int("labelled", report.Labelled),
		infralogger.Int("candidates", len(report.Candidates)),
		infralogger.Int("misplaced", len(report.Misplaced)),
	)

	out := cmd.OutOrStdout()
	common.RenderCandidates(out, report.Candidates)
	common.RenderMisplaced(out, report.Misplaced)
	common.RenderFindings(out, report.Findings)

	for _, path := range f.outputs {
		if writeErr := discovery.WriteReport(report, path); writeErr != nil {
			return writeErr
		}
		_, _ = fmt.Fprintf(out, "wrote %s\n", path)
	}
	return nil
}

func analyze(
	ctx context.Context, store *database.CommentRepository, tax *taxonomy.Taxonomy, cfg discovery.Config,
) (*discovery.Report, error) {
	a := discovery.NewAnalyzer(tax, cfg)
	err := store.StreamCorpus(ctx, func(c domain.ClassifiedComment) error {
		a.Observe(discovery.DocumentFromComment(&c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return a.Report(), nil
}
