package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/categorizer/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
)

// confidencePrecision is the number of decimals persisted for confidence.
const confidencePrecision = 4

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// BatchQuery selects one keyset page of rows for a worker.
type BatchQuery struct {
	Selector domain.Selector
	// AfterID is the worker's keyset cursor; only rows with a greater id are read.
	AfterID int64
	Limit   int
	// Partition and Partitions split the table by id modulo. Partitions <= 1
	// disables partitioning.
	Partition  int
	Partitions int
	// DryRun classifies and counts writes, then rolls the transaction back.
	DryRun bool
}

// BatchOutcome reports what one committed batch did.
type BatchOutcome struct {
	Read      int
	LastID    int64
	Updated   int
	Unchanged int
	Results   []domain.ClassificationResult
}

// BatchFunc classifies the rows of one batch. It must return one result per record.
type BatchFunc func(records []domain.CommentRecord) []domain.ClassificationResult

// CategoryCount is one row of the stored category distribution.
type CategoryCount struct {
	Category string `db:"categoria"`
	IsNoise  bool   `db:"es_ruido"`
	Count    int64  `db:"total"`
}

// CommentRepository reads survey comments and writes their classification.
type CommentRepository struct {
	db       *sqlx.DB
	table    string
	fallback string
}

// NewCommentRepository creates a repository over table. fallback is the
// category matched by the fallback selector.
func NewCommentRepository(db *sqlx.DB, table, fallback string) (*CommentRepository, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CommentRepository{db: db, table: table, fallback: fallback}, nil
}

// Table returns the table the repository works on.
func (r *CommentRepository) Table() string {
	return r.table
}

// Ping verifies the connection.
func (r *CommentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// predicate returns the SQL condition and arguments for a selector.
func (r *CommentRepository) predicate(sel domain.Selector) (string, []any, error) {
	switch sel {
	case domain.SelectorUncategorized:
		return "categoria IS NULL AND es_ruido IS NULL", nil, nil
	case domain.SelectorAll:
		return "1 = 1", nil, nil
	case domain.SelectorFallback:
		return "categoria = ?", []any{r.fallback}, nil
	default:
		return "", nil, fmt.Errorf("unknown selector %q", sel)
	}
}

func (r *CommentRepository) scope(q BatchQuery) (string, []any, error) {
	pred, args, err := r.predicate(q.Selector)
	if err != nil {
		return "", nil, err
	}
	where := "(" + pred + ") AND id > ?"
	args = append(args, q.AfterID)
	if q.Partitions > 1 {
		where += " AND id % ? = ?"
		args = append(args, q.Partitions, q.Partition)
	}
	return where, args, nil
}

// ProcessBatch runs one batch in a single transaction: select the next page of
// rows, classify them with fn and write back the results with a guarded,
// idempotent UPDATE. Any error rolls the whole batch back.
func (r *CommentRepository) ProcessBatch(ctx context.Context, q BatchQuery, fn BatchFunc) (BatchOutcome, error) {
	var out BatchOutcome
	if q.Limit <= 0 {
		return out, retry.Permanent(errors.New("batch limit must be positive"))
	}

	where, args, err := r.scope(q)
	if err != nil {
		return out, retry.Permanent(err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`
		SELECT id, COALESCE(canal, '') AS canal, COALESCE(metrica, '') AS metrica,
		       score, COALESCE(motivo_texto, '') AS motivo_texto
		FROM %s
		WHERE %s
		ORDER BY id
		LIMIT ?`, r.table, where)
	if r.db.DriverName() == DriverPostgres {
		query += " FOR UPDATE SKIP LOCKED"
	}

	var records []domain.CommentRecord
	if selErr := tx.SelectContext(ctx, &records, tx.Rebind(query), append(args, q.Limit)...); selErr != nil {
		return out, fmt.Errorf("select batch: %w", selErr)
	}
	if len(records) == 0 {
		return out, nil
	}
	for i := range records {
		records[i].SourceTable = r.table
	}

	out.Read = len(records)
	out.LastID = records[len(records)-1].ID

	results := fn(records)
	if len(results) != len(records) {
		return out, retry.Permanent(fmt.Errorf("classified %d of %d records", len(results), len(records)))
	}
	out.Results = results

	updated, unchanged, err := r.writeResults(ctx, tx, q.Selector, results)
	if err != nil {
		return out, err
	}
	out.Updated, out.Unchanged = updated, unchanged

	if q.DryRun {
		return out, nil
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return out, fmt.Errorf("commit batch: %w", commitErr)
	}
	committed = true

	return out, nil
}

func (r *CommentRepository) writeResults(
	ctx context.Context, tx *sqlx.Tx, sel domain.Selector, results []domain.ClassificationResult,
) (updated, unchanged int, err error) {
	pred, predArgs, err := r.predicate(sel)
	if err != nil {
		return 0, 0, err
	}

	// Rows that left the selector since the SELECT, or that already hold
	// these exact values, are not touched.
	query := fmt.Sprintf(`
		UPDATE %s
		SET categoria = ?, categoria_confianza = ?, es_ruido = ?, razon_ruido = ?
		WHERE id = ? AND (%s)
		  AND (categoria IS DISTINCT FROM ?
		       OR categoria_confianza IS DISTINCT FROM ?
		       OR es_ruido IS DISTINCT FROM ?
		       OR razon_ruido IS DISTINCT FROM ?)`, r.table, pred)

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for i := range results {
		res := &results[i]
		confidence := roundConfidence(res.Confidence)

		args := make([]any, 0, 9+len(predArgs))
		args = append(args, res.Category, confidence, res.IsNoise, res.NoiseReason, res.RecordID)
		args = append(args, predArgs...)
		args = append(args, res.Category, confidence, res.IsNoise, res.NoiseReason)

		execResult, execErr := stmt.ExecContext(ctx, args...)
		if execErr != nil {
			return 0, 0, fmt.Errorf("update record %d: %w", res.RecordID, execErr)
		}
		n, rowsErr := execResult.RowsAffected()
		if rowsErr != nil {
			return 0, 0, fmt.Errorf("rows affected for record %d: %w", res.RecordID, rowsErr)
		}
		if n > 0 {
			updated++
		} else {
			unchanged++
		}
	}

	return updated, unchanged, nil
}

// CountPending counts the rows a selector currently matches.
func (r *CommentRepository) CountPending(ctx context.Context, sel domain.Selector) (int64, error) {
	return r.CountRemaining(ctx, BatchQuery{Selector: sel})
}

// CountRemaining counts the rows of a worker's scope past its cursor.
func (r *CommentRepository) CountRemaining(ctx context.Context, q BatchQuery) (int64, error) {
	where, args, err := r.scope(q)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.table, where)
	if countErr := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...); countErr != nil {
		return 0, fmt.Errorf("count rows: %w", countErr)
	}
	return n, nil
}

// StreamCorpus calls fn for every row with text, in id order. A non-nil error
// from fn stops the stream and is returned.
func (r *CommentRepository) StreamCorpus(ctx context.Context, fn func(domain.ClassifiedComment) error) error {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(canal, '') AS canal, COALESCE(metrica, '') AS metrica, score,
		       motivo_texto, categoria, categoria_confianza, es_ruido
		FROM %s
		WHERE motivo_texto IS NOT NULL
		ORDER BY id`, r.table)

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.ClassifiedComment
		if scanErr := rows.StructScan(&c); scanErr != nil {
			return fmt.Errorf("scan corpus row: %w", scanErr)
		}
		c.SourceTable = r.table
		if fnErr := fn(c); fnErr != nil {
			return fnErr
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("iterate corpus: %w", rowsErr)
	}
	return nil
}

// Distribution returns the stored category counts, noise rows grouped apart.
func (r *CommentRepository) Distribution(ctx context.Context) ([]CategoryCount, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(categoria, '') AS categoria, COALESCE(es_ruido, FALSE) AS es_ruido, COUNT(*) AS total
		FROM %s
		GROUP BY COALESCE(categoria, ''), COALESCE(es_ruido, FALSE)
		ORDER BY total DESC, categoria`, r.table)

	var counts []CategoryCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("category distribution: %w", err)
	}
	return counts, nil
}

func roundConfidence(v float64) float64 {
	scale := math.Pow10(confidencePrecision)
	return math.Round(v*scale) / scale
}
