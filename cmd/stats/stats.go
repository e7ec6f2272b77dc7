// Package stats implements the stored distribution report.
package stats

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
)

// Command returns the stats command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the stored category distribution and pending rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, stop := common.SignalContext(cmd.Context())
			defer stop()

			tax, err := bootstrap.LoadTaxonomy(deps.Config.Taxonomy.Path, deps.Logger)
			if err != nil {
				return err
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

			rows, err := db.Comments.Distribution(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			common.RenderDistribution(out, rows)
			for _, sel := range []domain.Selector{domain.SelectorUncategorized, domain.SelectorFallback} {
				n, countErr := db.Comments.CountPending(ctx, sel)
				if countErr != nil {
					return countErr
				}
				_, _ = fmt.Fprintf(out, "%s: %d rows\n", sel, n)
			}
			return nil
		},
	}
}
