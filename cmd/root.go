// Package cmd implements the categorizer command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/classify"
	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	"github.com/jonesrussell/north-cloud/categorizer/cmd/discover"
	"github.com/jonesrussell/north-cloud/categorizer/cmd/httpd"
	"github.com/jonesrussell/north-cloud/categorizer/cmd/migrate"
	"github.com/jonesrussell/north-cloud/categorizer/cmd/stats"
	cmdtaxonomy "github.com/jonesrussell/north-cloud/categorizer/cmd/taxonomy"
)

// Version is set at build time.
var Version = "1.0.0"

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "categorizer",
		Short: "Categorize survey comments against a keyword taxonomy",
		Long: `Classify NPS/CSAT survey comments into a taxonomy of categories, flag noise,
and mine the classified corpus for new keywords.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	common.RegisterFlags(root)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "categorizer version %s\n", Version)
		},
	})
	root.AddCommand(classify.Commands()...)
	root.AddCommand(discover.Command())
	root.AddCommand(cmdtaxonomy.Command())
	root.AddCommand(migrate.Command())
	root.AddCommand(stats.Command())
	root.AddCommand(httpd.Command())

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return common.ExitCode(err)
}
