package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/rag"
)

// ReindexHandler rebuilds the chunk index from the content directory and
// invalidates the engine's cached index.
type ReindexHandler struct {
	pipeline *indexer.Pipeline
	engine   rag.Engine
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(pipeline *indexer.Pipeline, engine rag.Engine) *ReindexHandler {
	return &ReindexHandler{pipeline: pipeline, engine: engine}
}

// ReindexResponse reports the outcome of an index rebuild.
type ReindexResponse struct {
	Pages        int    `json:"pages"`
	PagesSkipped int    `json:"pagesSkipped"`
	Chunks       int    `json:"chunks"`
	Embedded     int    `json:"embedded"`
	Duration     string `json:"duration"`
}

// ServeHTTP handles HTTP requests for reindexing.
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.pipeline.BuildAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "index rebuild failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Index rebuild failed")
		return
	}
	stats.Log(ctx)

	h.engine.Reload()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ReindexResponse{
		Pages:        stats.Pages,
		PagesSkipped: stats.PagesSkipped,
		Chunks:       stats.Chunks,
		Embedded:     stats.Embedded,
		Duration:     stats.Duration.String(),
	}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
