package taxonomy_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

const sampleYAML = `
fallback: Otros
categories:
  - name: Atención al cliente
    patterns:
      - {text: mal servicio, weight: 2}
      - {text: Atención}
      - {text: buena atención, exclude: true}
    keywords: [asesor]
  - name: Tiempos de espera
    keywords: [espera, fila]
    exclusions: [sin espera]
`

func TestParse(t *testing.T) {
	t.Parallel()

	tx, err := taxonomy.Parse([]byte(sampleYAML), "sample.yml")
	require.NoError(t, err)

	assert.Equal(t, "Otros", tx.Fallback)
	require.Len(t, tx.Categories, 2)

	atencion := tx.Categories[0]
	assert.Equal(t, "Atención al cliente", atencion.Name)
	require.Len(t, atencion.Patterns, 4)
	assert.Equal(t, taxonomy.Pattern{Text: "mal servicio", Raw: "mal servicio", Weight: 2}, atencion.Patterns[0])
	assert.Equal(t, "atencion", atencion.Patterns[1].Text, "patterns are normalized at load")
	assert.Equal(t, 1.0, atencion.Patterns[1].Weight, "weight defaults to 1")
	assert.True(t, atencion.Patterns[2].Exclusion)

	assert.Equal(t, 1, tx.Index("Tiempos de espera"))
	assert.Equal(t, -1, tx.Index("Otros"))
	assert.Equal(t, 7, tx.PatternCount())
}

func TestParse_DefaultFallbackAndLegacyKeys(t *testing.T) {
	t.Parallel()

	legacy := `
categorias:
  - nombre: Precio
    palabras_clave: [caro, precio alto]
  - nombre: Otros
    palabras_clave: []
`
	tx, err := taxonomy.Parse([]byte(legacy), "legacy.yml")
	require.NoError(t, err)

	assert.Equal(t, taxonomy.DefaultFallback, tx.Fallback)
	require.Len(t, tx.Categories, 1, "empty fallback entry is tolerated and skipped")
	assert.Equal(t, "Precio", tx.Categories[0].Name)
}

func TestParse_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr error
		wantMsg string
	}{
		{name: "no categories", yaml: "fallback: Otros\n", wantErr: domain.ErrNoCategories},
		{
			name:    "empty pattern",
			yaml:    "categories:\n  - name: A\n    keywords: [ok, '!!!']\n",
			wantErr: domain.ErrEmptyPattern,
		},
		{name: "duplicate name", yaml: "categories:\n  - {name: A, keywords: [x1]}\n  - {name: A, keywords: [y1]}\n", wantMsg: "duplicate category"},
		{name: "zero weight", yaml: "categories:\n  - name: A\n    patterns: [{text: abc, weight: 0}]\n", wantMsg: "weight must be positive"},
		{name: "negative weight", yaml: "categories:\n  - name: A\n    patterns: [{text: abc, weight: -1}]\n", wantMsg: "weight must be positive"},
		{name: "infinite weight", yaml: "categories:\n  - name: A\n    patterns: [{text: abc, weight: .inf}]\n", wantMsg: "weight must be positive"},
		{name: "nan weight", yaml: "categories:\n  - name: A\n    patterns: [{text: abc, weight: .nan}]\n", wantMsg: "weight must be positive"},
		{name: "only exclusions", yaml: "categories:\n  - {name: A, exclusions: [abc]}\n", wantMsg: "no positive patterns"},
		{name: "fallback with patterns", yaml: "categories:\n  - {name: Otros, keywords: [abc]}\n  - {name: B, keywords: [def]}\n", wantMsg: "is the fallback"},
		{name: "missing name", yaml: "categories:\n  - {keywords: [abc]}\n", wantMsg: "name is required"},
		{name: "bad yaml", yaml: "categories: [", wantMsg: "decode yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := taxonomy.Parse([]byte(tt.yaml), "bad.yml")
			require.Error(t, err)
			assert.True(t, taxonomy.IsTaxonomyError(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParse_CollectsAllProblems(t *testing.T) {
	t.Parallel()

	_, err := taxonomy.Parse([]byte(`
categories:
  - {name: A, keywords: ['...']}
  - {name: B, exclusions: [x]}
`), "multi.yml")

	var tErr *domain.TaxonomyError
	require.True(t, errors.As(err, &tErr))
	assert.Len(t, tErr.Problems, 2)
	assert.Equal(t, "multi.yml", tErr.Source)
}

func TestParse_RepeatedPatternWarns(t *testing.T) {
	t.Parallel()

	tx, err := taxonomy.Parse([]byte("categories:\n  - {name: A, keywords: [Demora, demora]}\n"), "dup.yml")
	require.NoError(t, err)
	assert.Len(t, tx.Categories[0].Patterns, 1)
	assert.Len(t, tx.Warnings, 1)
}

func TestDefinition_RoundTrip(t *testing.T) {
	t.Parallel()

	tx, err := taxonomy.Parse([]byte(sampleYAML), "sample.yml")
	require.NoError(t, err)

	data, err := tx.Marshal()
	require.NoError(t, err)

	again, err := taxonomy.Parse(data, "again.yml")
	require.NoError(t, err)

	assert.Equal(t, tx.Fallback, again.Fallback)
	require.Len(t, again.Categories, len(tx.Categories))
	for i := range tx.Categories {
		assert.ElementsMatch(t, tx.Categories[i].Patterns, again.Categories[i].Patterns)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := taxonomy.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLint(t *testing.T) {
	t.Parallel()

	tx, err := taxonomy.Parse([]byte(`
categories:
  - {name: Atención, keywords: [mal servicio, demora]}
  - {name: Espera, keywords: [demora, espera]}
  - {name: Servicio, keywords: [servicio]}
`), "lint.yml")
	require.NoError(t, err)

	findings := taxonomy.Lint(tx)

	var kinds []string
	for _, f := range findings {
		kinds = append(kinds, f.String())
	}
	joined := strings.Join(kinds, "\n")

	assert.Contains(t, joined, `duplicate: "demora"`)
	assert.Contains(t, joined, `overlap: "mal servicio" (Atención) contains "servicio" (Servicio)`)
	assert.Len(t, findings, 2)
}
