// Package httpd implements the serve command: an HTTP surface for previewing
// classifications against the loaded taxonomy.
package httpd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/categorizer/cmd/common"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/api"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
)

// Command returns the serve command.
func Command() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the classification preview HTTP server",
		Long: `Serve POST /api/v1/classify, GET /api/v1/taxonomy, GET /api/v1/stats,
/health and /metrics. The server never writes to the store. When the database
is unreachable the server still starts; stats and the health check report it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()
			if port > 0 {
				deps.Config.Server.Port = port
			}

			ctx, stop := common.SignalContext(cmd.Context())
			defer stop()

			eng, err := bootstrap.BuildEngine(deps.Config, deps.Telemetry, deps.Logger)
			if err != nil {
				return err
			}

			var store api.Store
			db, dbErr := bootstrap.SetupDatabase(ctx, deps.Config, eng.Taxonomy.Fallback, false, deps.Logger)
			if dbErr != nil {
				deps.Logger.Warn("Database unavailable, stats endpoint disabled", infralogger.Error(dbErr))
			} else {
				store = db.Comments
				defer func() {
					if closeErr := db.Close(); closeErr != nil {
						deps.Logger.Error("Error closing database connection", infralogger.Error(closeErr))
					}
				}()
			}

			handler := api.NewHandler(eng.Engine, eng.Taxonomy, store, deps.Logger)
			server := api.NewServer(handler, deps.Config.Server, deps.Telemetry.Handler(), deps.Logger)
			return server.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
