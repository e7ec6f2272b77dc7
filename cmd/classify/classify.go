// Package classify implements the batch classification commands.
package classify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/processor"
)

type runFlags struct {
	dryRun        bool
	limit         int
	startAfter    int64
	minConfidence float64
	migrate       bool
}

// Commands returns the classify-new, classify-all and recategorize-fallback commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		newCommand("classify-new", domain.SelectorUncategorized,
			"Classify rows that have no category and no noise flag",
			`Classify every row that was never classified. Re-running after an
interruption resumes where the previous run stopped.`),
		newCommand("classify-all", domain.SelectorAll,
			"Reclassify every row with the current taxonomy",
			`Reclassify every row. Rows whose classification does not change are
not rewritten.`),
		newCommand("recategorize-fallback", domain.SelectorFallback,
			"Reclassify rows in the fallback category",
			`Reclassify only rows currently in the fallback category, typically after
merging discovery candidates into the taxonomy. Rows in any other category
are never touched. Use --min-confidence to keep weak matches in the fallback.`),
	}
}

func newCommand(use string, sel domain.Selector, short, long string) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, sel, f)
		},
	}

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "classify and report without writing (every batch is rolled back)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop after this many rows (0 means all)")
	cmd.Flags().Int64Var(&f.startAfter, "start-after", 0, "start after this row id")
	cmd.Flags().Float64Var(&f.minConfidence, "min-confidence", 0,
		"send winners below this confidence to the fallback (0 keeps classification.min_confidence)")
	cmd.Flags().BoolVar(&f.migrate, "migrate", false, "apply pending schema migrations before running")

	return cmd
}

func run(cmd *cobra.Command, sel domain.Selector, f runFlags) error {
	if f.minConfidence < 0 || f.minConfidence > 1 {
		return fmt.Errorf("--min-confidence must be between 0 and 1, got %v", f.minConfidence)
	}
	if f.limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", f.limit)
	}

	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	// The taxonomy must be fully valid before any row is touched.
	eng, err := bootstrap.BuildEngine(deps.Config, deps.Telemetry, deps.Logger)
	if err != nil {
		return err
	}

	db, err := bootstrap.SetupDatabase(ctx, deps.Config, eng.Taxonomy.Fallback, f.migrate, deps.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			deps.Logger.Error("Error closing database connection", infralogger.Error(closeErr))
		}
	}()

	proc := bootstrap.NewProcessor(db.Comments, eng.Engine, deps.Config, deps.Telemetry, deps.Logger)
	report, runErr := proc.Run(ctx, processor.RunOptions{
		Selector:      sel,
		Limit:         f.limit,
		DryRun:        f.dryRun,
		StartAfter:    f.startAfter,
		MinConfidence: f.minConfidence,
	})
	if report != nil {
		common.RenderReport(cmd.OutOrStdout(), report)
	}
	if runErr != nil {
		if report == nil {
			return fmt.Errorf("%s: %w", cmd.Name(), runErr)
		}
		return fmt.Errorf("%s: %w (completed %d rows in %d batches)",
			cmd.Name(), runErr, report.Processed, report.Batches)
	}
	return nil
}
