package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Terpedia/functional-flavors/internal/handlers"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService service.ChatService
	RAGEngine   rag.Engine
	Pipeline    *indexer.Pipeline // nil disables /api/reindex
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	searchHandler := handlers.NewSearchHandler(deps.RAGEngine)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)
		r.Method(http.MethodGet, "/search", searchHandler)
		if deps.Pipeline != nil {
			r.Method(http.MethodPost, "/reindex", handlers.NewReindexHandler(deps.Pipeline, deps.RAGEngine))
		}
	})

	r.Method(http.MethodGet, "/healthz", handlers.NewHealthHandler())

	return r
}
