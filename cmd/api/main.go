package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"strings"

	"github.com/Terpedia/functional-flavors/internal/answer"
	"github.com/Terpedia/functional-flavors/internal/config"
	"github.com/Terpedia/functional-flavors/internal/http"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/llm"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/service"
	"github.com/Terpedia/functional-flavors/internal/storage"
	"github.com/Terpedia/functional-flavors/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	indexRepo := storage.NewIndexRepo(db)
	sessionRepo := storage.NewSessionRepo(db)

	ctx := context.Background()

	// Optional semantic scoring stack. Everything works without it.
	var embedder *llm.EmbeddingsClient
	var vectorStore vectorstore.VectorStore
	if cfg.SemanticEnabled() {
		qdrant, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrant.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)

		// Validate embedding client vector size (fail-fast)
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.VectorSize)
		testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
		if err != nil {
			log.Fatalf("Failed to validate embedding client: %v", err)
		}
		if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.VectorSize {
			log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(testEmbeddings[0]))
		}
		vectorStore = qdrant
		slog.Info("Embedding client validated", "vector_size", cfg.VectorSize)
	}

	// Create indexing pipeline
	pipeline := indexer.NewPipeline(
		cfg.ContentDir,
		indexRepo,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		cfg.ArtifactPath,
	)

	// Index source ladder: artifact, then store, then the site's front page.
	var sources []rag.IndexSource
	if cfg.ArtifactURL != "" || cfg.ArtifactPath != "" {
		sources = append(sources, rag.NewArtifactSource(cfg.ArtifactURL, cfg.ArtifactPath))
	}
	sources = append(sources, rag.NewStoreSource(indexRepo))
	if cfg.SiteBaseURL != "" {
		sources = append(sources, rag.NewPageSource(strings.TrimSuffix(cfg.SiteBaseURL, "/")+"/index.html"))
	}

	keyword := rag.NewKeywordScorer()
	var strategy rag.ScoringStrategy
	if cfg.SemanticEnabled() {
		strategy = rag.NewSemanticStrategy(embedder, vectorStore, cfg.QdrantCollection)
	} else {
		strategy = rag.NewFTSStrategy(indexRepo, keyword)
	}

	ragEngine := rag.NewEngine(sources,
		rag.WithStrategy(strategy),
		rag.WithTopK(cfg.RetrievalK),
		rag.WithContextMaxLen(cfg.ContextMaxLen),
	)
	slog.Info("Retrieval engine initialized", "strategy", strategy.Name(), "sources", len(sources))

	// Optional external generation endpoint
	var generator answer.Generator
	if cfg.GenerationEnabled() {
		generator = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
		slog.Debug("Generation endpoint configured", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
	}
	assembler := answer.NewAssembler(generator)

	chatService := service.NewChatService(ragEngine, assembler, sessionRepo)

	// Create router with dependencies
	deps := &http.Deps{
		ChatService: chatService,
		RAGEngine:   ragEngine,
		Pipeline:    pipeline,
	}
	router := http.NewRouter(deps)

	// Start indexing in background after router is ready
	go func() {
		indexCtx := context.Background()
		slog.Info("Starting background index build", "content_dir", cfg.ContentDir)
		stats, err := pipeline.BuildAll(indexCtx)
		if err != nil {
			slog.Error("Index build completed with errors", "error", err)
			return
		}
		stats.Log(indexCtx)
		ragEngine.Reload()
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
