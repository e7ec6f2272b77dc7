package bootstrap

import (
	"fmt"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/profiling"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
)

// StartProfiling starts the profilers enabled in cfg.Profiling.
func StartProfiling(cfg *config.Config, logger infralogger.Logger) (*profiling.Profiler, error) {
	p, err := profiling.Start(cfg.Profiling, cfg.Service.Name, cfg.Service.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("start profiling: %w", err)
	}
	return p, nil
}
