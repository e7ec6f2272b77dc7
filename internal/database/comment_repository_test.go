package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fallback = "Otros"

type seedRow struct {
	id        int64
	metric    string
	score     float64
	text      any
	category  any
	isNoise   any
	confident any
}

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.NewConnection(context.Background(), database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "comments.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.MigrateUp(db, logger.NewNop()))
	return db
}

func seed(t *testing.T, db *sqlx.DB, rows ...seedRow) {
	t.Helper()

	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO respuestas_nps_csat
			(id, canal, metrica, score, motivo_texto, categoria, es_ruido, categoria_confianza)
			VALUES (?, 'web', ?, ?, ?, ?, ?, ?)`,
			r.id, r.metric, r.score, r.text, r.category, r.isNoise, r.confident)
		require.NoError(t, err)
	}
}

func newRepo(t *testing.T, db *sqlx.DB) *database.CommentRepository {
	t.Helper()

	repo, err := database.NewCommentRepository(db, "", fallback)
	require.NoError(t, err)
	return repo
}

// labelAll classifies every record into category with a fixed confidence.
func labelAll(category string, confidence float64) database.BatchFunc {
	return func(records []domain.CommentRecord) []domain.ClassificationResult {
		out := make([]domain.ClassificationResult, len(records))
		for i, rec := range records {
			cat := category
			out[i] = domain.ClassificationResult{
				RecordID:   rec.ID,
				Category:   &cat,
				Confidence: confidence,
				Outcome:    domain.OutcomeCategorized,
			}
		}
		return out
	}
}

func storedCategory(t *testing.T, db *sqlx.DB, id int64) *string {
	t.Helper()

	var cat *string
	require.NoError(t, db.Get(&cat, "SELECT categoria FROM respuestas_nps_csat WHERE id = ?", id))
	return cat
}

func TestNewCommentRepository_RejectsInvalidTable(t *testing.T) {
	t.Parallel()

	_, err := database.NewCommentRepository(nil, "respuestas; DROP TABLE x", fallback)
	require.Error(t, err)

	repo, err := database.NewCommentRepository(nil, "public.respuestas_nps_csat", fallback)
	require.NoError(t, err)
	assert.Equal(t, "public.respuestas_nps_csat", repo.Table())
}

func TestProcessBatch_UncategorizedKeysetPages(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 3, text: "mucha demora"},
		seedRow{id: 2, metric: "NPS", score: 9, text: "todo bien", category: "Atención al cliente", confident: 0.5},
		seedRow{id: 3, metric: "CSAT", score: 2, text: "muy caro"},
		seedRow{id: 4, metric: "CSAT", score: 5, text: nil},
	)

	ctx := context.Background()
	pending, err := repo.CountPending(ctx, domain.SelectorUncategorized)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	out, err := repo.ProcessBatch(ctx, database.BatchQuery{
		Selector: domain.SelectorUncategorized,
		Limit:    2,
	}, labelAll("Precio", 0.3333333))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Read)
	assert.Equal(t, int64(3), out.LastID)
	assert.Equal(t, 2, out.Updated)

	out, err = repo.ProcessBatch(ctx, database.BatchQuery{
		Selector: domain.SelectorUncategorized,
		AfterID:  out.LastID,
		Limit:    2,
	}, func(records []domain.CommentRecord) []domain.ClassificationResult {
		assert.Empty(t, records[0].RawText, "NULL text is read as empty")
		return labelAll("Otros", 0)(records)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Read)

	var confidence float64
	require.NoError(t, db.Get(&confidence, "SELECT categoria_confianza FROM respuestas_nps_csat WHERE id = 1"))
	assert.InDelta(t, 0.3333, confidence, 1e-12)
	assert.Equal(t, "Atención al cliente", *storedCategory(t, db, 2))

	pending, err = repo.CountPending(ctx, domain.SelectorUncategorized)
	require.NoError(t, err)
	assert.Zero(t, pending)

	out, err = repo.ProcessBatch(ctx, database.BatchQuery{Selector: domain.SelectorUncategorized, Limit: 2},
		labelAll("Precio", 1))
	require.NoError(t, err)
	assert.Zero(t, out.Read)
}

func TestProcessBatch_NoiseResultWritesNullCategory(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db, seedRow{id: 7, metric: "NPS", score: 8, text: "ok"})

	reason := domain.NoiseTooShort
	_, err := repo.ProcessBatch(context.Background(), database.BatchQuery{
		Selector: domain.SelectorUncategorized,
		Limit:    10,
	}, func(records []domain.CommentRecord) []domain.ClassificationResult {
		return []domain.ClassificationResult{{
			RecordID:    records[0].ID,
			IsNoise:     true,
			NoiseReason: &reason,
			Outcome:     domain.OutcomeNoise,
		}}
	})
	require.NoError(t, err)

	var row struct {
		Category *string `db:"categoria"`
		IsNoise  *bool   `db:"es_ruido"`
		Reason   *string `db:"razon_ruido"`
	}
	require.NoError(t, db.Get(&row, "SELECT categoria, es_ruido, razon_ruido FROM respuestas_nps_csat WHERE id = 7"))
	assert.Nil(t, row.Category)
	require.NotNil(t, row.IsNoise)
	assert.True(t, *row.IsNoise)
	require.NotNil(t, row.Reason)
	assert.Equal(t, domain.NoiseTooShort, *row.Reason)
}

func TestProcessBatch_FallbackSelectorOnlyTouchesFallbackRows(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 2, text: "mucha demora", category: fallback, confident: 0.0, isNoise: false},
		seedRow{id: 2, metric: "NPS", score: 2, text: "mucha demora", category: "Atención al cliente", confident: 0.5, isNoise: false},
	)

	var seen []int64
	out, err := repo.ProcessBatch(context.Background(), database.BatchQuery{
		Selector: domain.SelectorFallback,
		Limit:    10,
	}, func(records []domain.CommentRecord) []domain.ClassificationResult {
		for _, r := range records {
			seen = append(seen, r.ID)
		}
		return labelAll("Tiempos de espera", 0.3333)(records)
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, seen)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, "Tiempos de espera", *storedCategory(t, db, 1))
	assert.Equal(t, "Atención al cliente", *storedCategory(t, db, 2))
}

func TestProcessBatch_SameValuesAreUnchanged(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 2, text: "muy caro"},
		seedRow{id: 2, metric: "NPS", score: 2, text: "precio alto"},
	)

	ctx := context.Background()
	q := database.BatchQuery{Selector: domain.SelectorAll, Limit: 10}

	first, err := repo.ProcessBatch(ctx, q, labelAll("Precio", 0.5))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Updated)

	second, err := repo.ProcessBatch(ctx, q, labelAll("Precio", 0.5))
	require.NoError(t, err)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
}

func TestProcessBatch_PartitionByModulo(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	for id := int64(1); id <= 6; id++ {
		seed(t, db, seedRow{id: id, metric: "NPS", score: 5, text: "texto"})
	}

	var seen []int64
	_, err := repo.ProcessBatch(context.Background(), database.BatchQuery{
		Selector:   domain.SelectorUncategorized,
		Limit:      10,
		Partition:  1,
		Partitions: 2,
	}, func(records []domain.CommentRecord) []domain.ClassificationResult {
		for _, r := range records {
			seen = append(seen, r.ID)
		}
		return labelAll("X", 0.1)(records)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 5}, seen)

	remaining, err := repo.CountRemaining(context.Background(), database.BatchQuery{
		Selector:   domain.SelectorUncategorized,
		Partition:  0,
		Partitions: 2,
		AfterID:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
}

func TestProcessBatch_DryRunRollsBack(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db, seedRow{id: 1, metric: "NPS", score: 2, text: "muy caro"})

	out, err := repo.ProcessBatch(context.Background(), database.BatchQuery{
		Selector: domain.SelectorUncategorized,
		Limit:    10,
		DryRun:   true,
	}, labelAll("Precio", 0.5))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Updated)
	assert.Len(t, out.Results, 1)
	assert.Nil(t, storedCategory(t, db, 1))
}

func TestProcessBatch_ResultCountMismatchRollsBack(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 2, text: "muy caro"},
		seedRow{id: 2, metric: "NPS", score: 2, text: "muy caro"},
	)

	_, err := repo.ProcessBatch(context.Background(), database.BatchQuery{
		Selector: domain.SelectorUncategorized,
		Limit:    10,
	}, func(records []domain.CommentRecord) []domain.ClassificationResult {
		return labelAll("Precio", 0.5)(records[:1])
	})
	require.Error(t, err)
	assert.False(t, retry.DefaultIsRetryable(err), "a short result set fails the same way on every attempt")
	assert.Nil(t, storedCategory(t, db, 1))
}

func TestProcessBatch_RejectsBadQuery(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)

	_, err := repo.ProcessBatch(context.Background(), database.BatchQuery{Selector: domain.SelectorAll}, labelAll("X", 1))
	require.Error(t, err)
	assert.False(t, retry.DefaultIsRetryable(err))

	_, err = repo.ProcessBatch(context.Background(), database.BatchQuery{Selector: "bogus", Limit: 1}, labelAll("X", 1))
	require.Error(t, err)
	assert.False(t, retry.DefaultIsRetryable(err))
}

func TestStreamCorpusAndDistribution(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 2, text: "muy caro", category: "Precio", confident: 0.5, isNoise: false},
		seedRow{id: 2, metric: "NPS", score: 9, text: "ok", isNoise: true},
		seedRow{id: 3, metric: "CSAT", score: 5, text: nil},
		seedRow{id: 4, metric: "NPS", score: 1, text: "caro", category: "Precio", confident: 0.3333, isNoise: false},
	)

	var got []domain.ClassifiedComment
	err := repo.StreamCorpus(context.Background(), func(c domain.ClassifiedComment) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	require.NotNil(t, got[0].Category)
	assert.Equal(t, "Precio", *got[0].Category)
	require.NotNil(t, got[1].IsNoise)
	assert.True(t, *got[1].IsNoise)
	assert.Equal(t, "respuestas_nps_csat", got[2].SourceTable)

	counts, err := repo.Distribution(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, counts)
	assert.Equal(t, "Precio", counts[0].Category)
	assert.Equal(t, int64(2), counts[0].Count)
}

func TestStreamCorpus_StopsOnCallbackError(t *testing.T) {
	t.Parallel()

	db := newSQLiteDB(t)
	repo := newRepo(t, db)
	seed(t, db,
		seedRow{id: 1, metric: "NPS", score: 2, text: "uno"},
		seedRow{id: 2, metric: "NPS", score: 2, text: "dos"},
	)

	stop := assert.AnError
	calls := 0
	err := repo.StreamCorpus(context.Background(), func(domain.ClassifiedComment) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
