// Package migrate implements the schema migration commands.
package migrate

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
)

// Command returns the migrate command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the classification columns of the answers table",
		Long: `Add (up) or remove (down) the category, confidence and noise columns the
classifier writes. On sqlite3 databases the answers table itself is created.`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, func(db *sqlx.DB, log infralogger.Logger) error {
				return database.MigrateDown(db, steps, log)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, database.MigrateUp)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(db *sqlx.DB, _ infralogger.Logger) error {
					version, dirty, err := database.MigrationVersion(db)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withDB(cmd *cobra.Command, fn func(*sqlx.DB, infralogger.Logger) error) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, stop := common.SignalContext(cmd.Context())
	defer stop()

	db, err := bootstrap.Connect(ctx, deps.Config, deps.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			deps.Logger.Error("Error closing database connection", infralogger.Error(closeErr))
		}
	}()

	return fn(db, deps.Logger)
}
