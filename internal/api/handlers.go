package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/categorizer/internal/classifier"
	"github.com/jonesrussell/north-cloud/categorizer/internal/database"
	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
	"github.com/jonesrussell/north-cloud/categorizer/internal/taxonomy"
)

// MaxClassifyTexts caps one preview request.
const MaxClassifyTexts = 500

var errNoStore = errors.New("no database configured")

// Store is the read side of the comment repository the API reports on.
type Store interface {
	Ping(ctx context.Context) error
	CountPending(ctx context.Context, sel domain.Selector) (int64, error)
	Distribution(ctx context.Context) ([]database.CategoryCount, error)
}

// Handler serves classification previews over the loaded taxonomy. It never
// writes to the store.
type Handler struct {
	engine   *classifier.Engine
	taxonomy *taxonomy.Taxonomy
	store    Store
	logger   infralogger.Logger
}

// NewHandler creates a new API handler. store may be nil.
func NewHandler(engine *classifier.Engine, t *taxonomy.Taxonomy, store Store, logger infralogger.Logger) *Handler {
	return &Handler{
		engine:   engine,
		taxonomy: t,
		store:    store,
		logger:   logger,
	}
}

// Classify handles POST /api/v1/classify
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid classification request", infralogger.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	engine := h.engine
	if req.MinConfidence > 0 {
		engine = engine.WithMinConfidence(req.MinConfidence)
	}

	resp := ClassifyResponse{
		Results:    make([]ClassifiedText, 0, len(req.Texts)),
		ByOutcome:  make(map[domain.Outcome]int),
		ByCategory: make(map[string]int),
	}
	for i, text := range req.Texts {
		res := engine.Classify(domain.CommentRecord{ID: int64(i + 1), RawText: text})
		resp.Results = append(resp.Results, ClassifiedText{
			Text:       text,
			Normalized: normalize.Text(text),
			Result:     res,
		})
		resp.ByOutcome[res.Outcome]++
		if name := res.CategoryName(); name != "" {
			resp.ByCategory[name]++
		}
	}
	resp.Total = len(resp.Results)

	h.logger.Debug("Texts classified",
		infralogger.Int("total", resp.Total),
		infralogger.Int("fallback", resp.ByOutcome[domain.OutcomeFallback]),
		infralogger.Int("noise", resp.ByOutcome[domain.OutcomeNoise]),
	)

	c.JSON(http.StatusOK, resp)
}

// GetTaxonomy handles GET /api/v1/taxonomy
func (h *Handler) GetTaxonomy(c *gin.Context) {
	c.JSON(http.StatusOK, toTaxonomyResponse(h.taxonomy))
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: errNoStore.Error()})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.store.Distribution(ctx)
	if err != nil {
		h.logger.Error("Failed to load category distribution", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load statistics"})
		return
	}

	resp := StatsResponse{
		Categories: make([]CategoryStat, 0, len(rows)),
		Pending:    make(map[domain.Selector]int64),
	}
	for _, row := range rows {
		resp.Categories = append(resp.Categories, CategoryStat{
			Category: row.Category,
			IsNoise:  row.IsNoise,
			Count:    row.Count,
		})
		resp.Total += row.Count
	}

	for _, sel := range []domain.Selector{domain.SelectorUncategorized, domain.SelectorFallback} {
		n, countErr := h.store.CountPending(ctx, sel)
		if countErr != nil {
			h.logger.Error("Failed to count rows",
				infralogger.String("selector", string(sel)),
				infralogger.Error(countErr),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load statistics"})
			return
		}
		resp.Pending[sel] = n
	}

	c.JSON(http.StatusOK, resp)
}

// ReadyCheck handles GET /ready. The service is ready once a taxonomy is loaded.
func (h *Handler) ReadyCheck(c *gin.Context) {
	if h.engine == nil || h.taxonomy == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"categories": len(h.taxonomy.Categories),
		"patterns":   h.taxonomy.PatternCount(),
	})
}

// pingStore is the database health check.
func (h *Handler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return errNoStore
	}
	return h.store.Ping(ctx)
}
