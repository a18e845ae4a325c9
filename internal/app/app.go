package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"tessera/backend/features/chat"
	"tessera/backend/features/document"
	"tessera/backend/features/project"
	"tessera/backend/features/stats"
	"tessera/backend/internal/adapter/docling"
	"tessera/backend/internal/adapter/gemini"
	"tessera/backend/internal/config"
	"tessera/backend/internal/embed"
	"tessera/backend/internal/middleware"
	"tessera/backend/internal/retrieval"
	"tessera/backend/internal/status"
	"tessera/backend/internal/worker"
)

// Database is satisfied by *sql.DB; repositories cast back to the concrete
// type, the interface exists so tests can hand in sqlmock connections.
type Database interface {
	Ping() error
}

// VectorStore is the chunk store surface the app needs: persistence for the
// ingest pipeline plus the two search primitives for retrieval.
type VectorStore interface {
	UpsertChunk(ctx context.Context, rec embed.Record) error
	DeleteChunks(ctx context.Context, documentID string) error
	GetChunks(ctx context.Context, documentID string) ([]retrieval.Chunk, error)
	VectorSearch(ctx context.Context, vector []float32, documentIDs []string, threshold float64, limit int) ([]retrieval.Chunk, error)
	KeywordSearch(ctx context.Context, query string, documentIDs []string, limit int) ([]retrieval.Chunk, error)
	CountChunks(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	// Cast db to *sql.DB for repositories that require it. This keeps the
	// signature mockable with sqlmock while repositories stay on database/sql.
	sqlDB := db.(*sql.DB)

	ctx := context.Background()

	// Adapters: Gemini. Client construction does not validate the key, so
	// this succeeds even when GEMINI_API_KEY is unset; calls fail instead.
	llm, err := gemini.NewLLM(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini llm: %w", err)
	}
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}

	// Feature: Project
	projectRepo := project.NewPostgresRepo(sqlDB)
	projectService := project.NewService(projectRepo)
	projectHandler := project.NewHandler(projectService)

	// Feature: Document
	documentRepo := document.NewPostgresRepo(sqlDB)
	documentService := document.NewService(documentRepo, taskPub, vecStore)
	documentHandler := document.NewHandler(documentService, cfg.UploadDir)

	// Feature: Chat
	retrievalService := retrieval.NewService(embedder, vecStore, retrieval.NewLLMExpander(llm))
	chatRepo := chat.NewPostgresRepo(sqlDB)
	chatService := chat.NewService(chatRepo, projectService, documentRepo, retrievalService, llm)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Stats
	statsHandler := stats.NewHandler(projectRepo, documentRepo, vecStore)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /projects", middleware.CorrelationID(enableCORS(projectHandler.Create)))
	mux.Handle("GET /projects", middleware.CorrelationID(enableCORS(projectHandler.List)))
	mux.Handle("GET /projects/{id}", middleware.CorrelationID(enableCORS(projectHandler.Get)))
	mux.Handle("DELETE /projects/{id}", middleware.CorrelationID(enableCORS(projectHandler.Delete)))
	mux.Handle("GET /projects/{id}/settings", middleware.CorrelationID(enableCORS(projectHandler.GetSettings)))
	mux.Handle("PUT /projects/{id}/settings", middleware.CorrelationID(enableCORS(projectHandler.UpdateSettings)))

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Create)))
	mux.Handle("POST /documents/upload", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))
	mux.Handle("POST /documents/{id}/reprocess", middleware.CorrelationID(enableCORS(documentHandler.Reprocess)))

	mux.Handle("POST /chats", middleware.CorrelationID(enableCORS(chatHandler.Create)))
	mux.Handle("GET /chats", middleware.CorrelationID(enableCORS(chatHandler.List)))
	mux.Handle("GET /chats/{id}", middleware.CorrelationID(enableCORS(chatHandler.Get)))
	mux.Handle("DELETE /chats/{id}", middleware.CorrelationID(enableCORS(chatHandler.Delete)))
	mux.Handle("POST /projects/{projectId}/chats/{chatId}/messages", middleware.CorrelationID(enableCORS(chatHandler.SendMessage)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	app := &App{
		Handler:         mux,
		DocumentService: documentService,
		port:            cfg.ServerPort,
	}

	// Worker (Ingest Consumer) Setup
	if cfg.EnableIngestWorker {
		tracker := status.NewTracker(documentRepo)
		pipeline := worker.NewPipeline(
			documentRepo,
			worker.NewFSObjectStore(cfg.UploadDir),
			docling.NewClient(cfg.DoclingURL),
			llm,
			embedder,
			vecStore,
			vecStore,
			tracker,
		)
		app.IngestConsumer = worker.NewIngestConsumer(pipeline, tracker)
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
