package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/rag"
)

// SearchHandler exposes ranked retrieval directly, without answer assembly.
type SearchHandler struct {
	engine rag.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine rag.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// SearchResult is one ranked passage in a search response.
type SearchResult struct {
	PageTitle      string  `json:"pageTitle"`
	PageURL        string  `json:"pageUrl"`
	SectionHeading string  `json:"sectionHeading,omitempty"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
}

// SearchResponse represents the HTTP response payload for search.
type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Degraded bool           `json:"degraded,omitempty"`
}

// ServeHTTP handles HTTP requests for search.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing query parameter: q")
		return
	}

	result := h.engine.Retrieve(ctx, query)

	resp := SearchResponse{
		Query:    query,
		Results:  []SearchResult{},
		Degraded: result.Degraded,
	}
	limit := len(result.Chunks)
	if k := r.URL.Query().Get("k"); k != "" {
		if n, err := strconv.Atoi(k); err == nil && n >= 0 && n < limit {
			limit = n
		}
	}
	for _, sc := range result.Chunks[:limit] {
		resp.Results = append(resp.Results, SearchResult{
			PageTitle:      sc.Chunk.PageTitle,
			PageURL:        sc.Chunk.PageURL,
			SectionHeading: sc.Chunk.SectionHeading,
			Text:           sc.Chunk.Text,
			Score:          sc.Score,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
