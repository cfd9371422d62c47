package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/ingest"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

// Store is the slice of the document store the server needs.
type Store interface {
	Add(ctx context.Context, texts []string, metadatas []map[string]any) error
	AllIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, ids []string) ([]vector.Document, error)
	Query(ctx context.Context, queryTexts []string, topK int, opts ...store.QueryOption) ([][]vector.QueryResult, error)
}

// ErrorResponse is the user-safe error payload. Details are logged, not
// returned.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server for ingesting documents and querying the
// knowledge base.
type Server struct {
	config  Config
	store   Store
	client  llm.Client
	chunker ingest.Chunker
	events  eventstream.Publisher
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The store is injected to allow sharing with other components
// (e.g., the chat command when serving and chatting in one process).
// events may be nil to disable run event publishing.
func NewServer(config Config, st Store, client llm.Client, events eventstream.Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		store:   st,
		client:  client,
		chunker: ingest.NewWordChunker(ingest.ChunkerConfig{}),
		events:  events,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/api/v1/ingest", s.handleIngest)
	app.Post("/api/v1/ask", s.handleAsk)
	app.Post("/api/v1/discover", s.handleDiscover)
	app.Get("/api/v1/stats", s.handleStats)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying fiber app, used by tests to issue requests
// without a listener.
func (s *Server) App() *fiber.App {
	return s.app
}
