// Package taxonomy implements the taxonomy maintenance commands.
package taxonomy

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/matcher"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

// Command returns the taxonomy command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Validate and maintain the taxonomy file",
	}
	cmd.AddCommand(validateCommand(), mergeCommand())
	return cmd
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the taxonomy, build the automaton and report findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			tax, err := bootstrap.LoadTaxonomy(deps.Config.Taxonomy.Path, deps.Logger)
			if err != nil {
				return err
			}
			automaton, err := matcher.Build(tax)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			common.RenderTaxonomy(out, tax)
			common.RenderFindings(out, taxonomy.Lint(tax))
			for _, w := range tax.Warnings {
				_, _ = fmt.Fprintf(out, "warning: %s\n", w)
			}
			_, _ = fmt.Fprintf(out, "ok: %d categories, %d patterns, %d automaton states\n",
				len(tax.Categories), automaton.NumEntries(), automaton.NumStates())
			return nil
		},
	}
}

type mergeFlags struct {
	proposals        string
	output           string
	maxPerCategory   int
	minCorrelation   float64
	includeConflicts bool
	weight           float64
	dryRun           bool
}

func mergeCommand() *cobra.Command {
	var f mergeFlags

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold reviewed discovery candidates into the taxonomy",
		Long: `Add the candidates of a discovery artifact (YAML or JSON) to the taxonomy as
new patterns. Tokens already declared by another category are skipped unless
--include-conflicts is set. The previous file is kept as a timestamped backup.
The next classification run picks up the rebuilt taxonomy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMerge(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.proposals, "proposals", "p", "proposals.yml", "discovery artifact to merge")
	cmd.Flags().StringVarP(&f.output, "out", "o", "", "write the merged taxonomy here (default: overwrite --taxonomy)")
	cmd.Flags().IntVar(&f.maxPerCategory, "max-per-category", 0, "accept at most this many candidates per category")
	cmd.Flags().Float64Var(&f.minCorrelation, "min-correlation", 0, "skip candidates below this correlation")
	cmd.Flags().BoolVar(&f.includeConflicts, "include-conflicts", false, "accept tokens declared by another category")
	cmd.Flags().Float64Var(&f.weight, "weight", 0, "weight of the new patterns (default 1)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report what would be added without writing")

	return cmd
}

func runMerge(cmd *cobra.Command, f mergeFlags) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	path := deps.Config.Taxonomy.Path
	tax, err := bootstrap.LoadTaxonomy(path, deps.Logger)
	if err != nil {
		return err
	}

	report, err := discovery.ReadReport(f.proposals)
	if err != nil {
		return err
	}

	merged, stats := taxonomy.Merge(tax, report.Candidates, taxonomy.MergeOptions{
		MaxPerCategory:   f.maxPerCategory,
		MinCorrelation:   f.minCorrelation,
		IncludeConflicts: f.includeConflicts,
		Weight:           f.weight,
	})

	// A merged taxonomy that no longer compiles must never replace the current one.
	if _, buildErr := matcher.Build(merged); buildErr != nil {
		return fmt.Errorf("merged taxonomy is invalid: %w", buildErr)
	}

	out := cmd.OutOrStdout()
	common.RenderMergeStats(out, stats)
	if f.dryRun || stats.Total() == 0 {
		_, _ = fmt.Fprintln(out, "taxonomy not written")
		return nil
	}

	target := f.output
	if target == "" {
		target = path
	}
	backup, err := taxonomy.Save(merged, target)
	if err != nil {
		return err
	}

	deps.Logger.Info("Taxonomy merged",
		infralogger.String("path", target),
		infralogger.String("backup", backup),
		infralogger.String("proposals", f.proposals),
		infralogger.Int("added", stats.Total()),
	)
	_, _ = fmt.Fprintf(out, "wrote %s", target)
	if backup != "" {
		_, _ = fmt.Fprintf(out, " (backup %s)", backup)
	}
	_, _ = fmt.Fprintln(out)
	return nil
}
