package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
)

// DatabaseComponents holds the database connection and the comment repository.
type DatabaseComponents struct {
	DB       *sqlx.DB
	Comments *database.CommentRepository
}

// Close closes the underlying connection.
func (d *DatabaseComponents) Close() error {
	return d.DB.Close()
}

// SetupDatabase connects, applies pending migrations when migrate is set and
// builds the comment repository. fallback is the taxonomy fallback category.
func SetupDatabase(
	ctx context.Context, cfg *config.Config, fallback string, migrate bool, logger infralogger.Logger,
) (*DatabaseComponents, error) {
	db, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if migrate {
		if migrateErr := database.MigrateUp(db, logger); migrateErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", migrateErr)
		}
	}

	comments, err := database.NewCommentRepository(db, cfg.Database.Table, fallback)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DatabaseComponents{DB: db, Comments: comments}, nil
}

// Connect opens the configured database without touching its schema.
func Connect(ctx context.Context, cfg *config.Config, logger infralogger.Logger) (*sqlx.DB, error) {
	logger.Info("Connecting to database",
		infralogger.String("driver", cfg.Database.Driver),
		infralogger.String("host", cfg.Database.Host),
		infralogger.String("database", firstSet(cfg.Database.DBName, cfg.Database.Path)),
		infralogger.String("table", cfg.Database.Table),
	)

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connected successfully")
	return db, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
