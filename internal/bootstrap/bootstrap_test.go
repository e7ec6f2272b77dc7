package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/categorizer/internal/config"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
)

const taxonomyYAML = `
fallback: Otros
categories:
  - name: Atención
    keywords: [mal servicio, atencion]
  - name: Precio
    keywords: [caro, precio]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	taxPath := filepath.Join(dir, "taxonomy.yml")
	require.NoError(t, os.WriteFile(taxPath, []byte(taxonomyYAML), 0o600))

	cfgPath := filepath.Join(dir, "config.yml")
	content := "database:\n  driver: sqlite3\n  path: " + filepath.Join(dir, "test.db") +
		"\ntaxonomy:\n  path: " + taxPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := bootstrap.LoadConfig(cfgPath)
	require.NoError(t, err)
	return cfg
}

func TestBuildEngine(t *testing.T) {
	cfg := testConfig(t)

	comps, err := bootstrap.BuildEngine(cfg, nil, infralogger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "Otros", comps.Engine.Fallback())
	assert.Equal(t, 4, comps.Automaton.NumEntries())

	res := comps.Engine.Classify(domain.CommentRecord{ID: 1, RawText: "Muy MAL SERVICIO en la sucursal"})
	assert.Equal(t, domain.OutcomeCategorized, res.Outcome)
	assert.Equal(t, "Atención", res.CategoryName())
}

func TestBuildEngine_MissingTaxonomy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Taxonomy.Path = filepath.Join(t.TempDir(), "nope.yml")

	_, err := bootstrap.BuildEngine(cfg, nil, infralogger.NewNop())
	require.Error(t, err)
}

func TestSetupDatabase_SQLite(t *testing.T) {
	cfg := testConfig(t)

	db, err := bootstrap.SetupDatabase(context.Background(), cfg, "Otros", true, infralogger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pending, err := db.Comments.CountPending(context.Background(), domain.SelectorUncategorized)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, "respuestas_nps_csat", db.Comments.Table())
}

func TestCreateLogger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Service.Debug = true

	logger, err := bootstrap.CreateLogger(cfg)
	require.NoError(t, err)
	logger.Debug("debug enabled")
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := bootstrap.LoadConfig(path)
	require.Error(t, err)
}
