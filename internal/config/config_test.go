package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/discovery"
	"github.com/jonesrussell/north-cloud/categorizer/internal/processor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "categorizer", cfg.Service.Name)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, database.DefaultTable, cfg.Database.Table)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "taxonomy.yml", cfg.Taxonomy.Path)
	assert.Equal(t, classifier.BoundaryNone, cfg.Classification.Boundary)
	assert.Equal(t, classifier.DedupNone, cfg.Classification.Dedup)
	assert.InDelta(t, classifier.DefaultConfidenceK, cfg.Classification.ConfidenceK, 1e-9)
	assert.Equal(t, classifier.DefaultErrorCategory, cfg.Classification.ErrorCategory)
	assert.Equal(t, processor.DefaultBatchSize, cfg.Processor.BatchSize)
	assert.Equal(t, processor.DefaultWorkers, cfg.Processor.Workers)
	assert.Equal(t, discovery.LabelCategory, cfg.Discovery.Mode)
	assert.Equal(t, discovery.DefaultMinSupport, cfg.Discovery.MinSupport)
	assert.Equal(t, "categorizer", cfg.Server.ServiceName)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
service:
  debug: true
database:
  driver: sqlite3
  path: /tmp/encuestas.db
taxonomy:
  path: conf/taxonomy.yml
classification:
  boundary: word
  dedup: pattern
  min_confidence: 0.4
  error_category: __fallo__
processor:
  batch_size: 250
  workers: 4
discovery:
  mode: outcome
  min_support: 10
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/encuestas.db", cfg.Database.Path)
	assert.Empty(t, cfg.Database.Host, "postgres defaults are skipped for sqlite")
	assert.Equal(t, "conf/taxonomy.yml", cfg.Taxonomy.Path)
	assert.Equal(t, classifier.BoundaryWord, cfg.Classification.Boundary)
	assert.Equal(t, classifier.DedupPattern, cfg.Classification.Dedup)
	assert.InDelta(t, 0.4, cfg.Classification.MinConfidence, 1e-9)
	assert.Equal(t, "__fallo__", cfg.Classification.ErrorCategory)
	assert.Equal(t, 250, cfg.Processor.BatchSize)
	assert.Equal(t, 4, cfg.Processor.Workers)
	assert.Equal(t, discovery.LabelOutcome, cfg.Discovery.Mode)
	assert.Equal(t, 10, cfg.Discovery.MinSupport)
	assert.True(t, cfg.Server.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CATEGORIZER_WORKERS", "8")
	t.Setenv("DB_TABLE", "respuestas_2024")
	t.Setenv("CATEGORIZER_TAXONOMY", "/etc/categorizer/taxonomy.yml")
	t.Setenv("ENABLE_PROFILING", "true")

	cfg, err := config.Load(writeConfig(t, "processor:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Processor.Workers)
	assert.Equal(t, "respuestas_2024", cfg.Database.Table)
	assert.Equal(t, "/etc/categorizer/taxonomy.yml", cfg.Taxonomy.Path)
	assert.True(t, cfg.Profiling.Pprof)
	assert.Equal(t, "6060", cfg.Profiling.PprofPort)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"driver", "database:\n  driver: mysql\n", "database.driver"},
		{"boundary", "classification:\n  boundary: fuzzy\n", "classification.boundary"},
		{"min confidence", "classification:\n  min_confidence: 1.5\n", "classification.min_confidence"},
		{"discovery mode", "discovery:\n  mode: sentiment\n", "discovery.mode"},
		{"log level", "logging:\n  level: verbose\n", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "processor: [unterminated\n"))
	require.Error(t, err)
}
