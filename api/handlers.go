package api

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/eventstream"
	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/ingest"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/pipeline/discovery"
	"github.com/lectorhq/lector/pkg/pipeline/qa"
	"github.com/lectorhq/lector/pkg/sampler"
	"github.com/lectorhq/lector/pkg/utils"
)

// IngestRequest is the JSON body for POST /api/v1/ingest.
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestDocument is one named text to ingest.
type IngestDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// IngestResponse reports what was ingested.
type IngestResponse struct {
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
}

// AskRequest is the JSON body for POST /api/v1/ask.
type AskRequest struct {
	Query     string `json:"query"`
	TopK      *int   `json:"top_k,omitempty"`
	Decompose *bool  `json:"decompose,omitempty"`
}

// AskResponse carries the synthesized answer and its sources.
type AskResponse struct {
	Summary    string   `json:"summary"`
	Subqueries []string `json:"subqueries"`
	Documents  []string `json:"documents"`
}

// DiscoverRequest is the JSON body for POST /api/v1/discover.
// NSample and PSample are mutually exclusive.
type DiscoverRequest struct {
	NSample *int     `json:"n_sample,omitempty"`
	PSample *float64 `json:"p_sample,omitempty"`
}

// DiscoverResponse carries the corpus overview.
type DiscoverResponse struct {
	Overview          string  `json:"overview"`
	Clusters          int     `json:"clusters"`
	OrphanPercentage  float64 `json:"orphan_percentage"`
	DocumentsSampled  int     `json:"documents_sampled"`
	DocumentsIndexed  int     `json:"documents_indexed"`
}

// StatsResponse reports knowledge base statistics.
type StatsResponse struct {
	Documents int `json:"documents"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest accepts documents as multipart file uploads or as a JSON
// body, chunks them, and adds the chunks to the store.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	docs, err := s.collectDocuments(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	if len(docs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "no documents provided"})
	}

	totalChunks := 0
	for _, doc := range docs {
		chunks := s.chunker.Chunk(&doc)
		if len(chunks) == 0 {
			continue
		}

		metadatas := make([]map[string]any, len(chunks))
		for i := range chunks {
			metadatas[i] = map[string]any{"source": doc.Name}
		}

		if err := s.store.Add(c.Context(), chunks, metadatas); err != nil {
			s.logger.Error("ingest failed", "file", doc.Name, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to ingest documents"})
		}
		totalChunks += len(chunks)
	}

	return c.JSON(IngestResponse{Files: len(docs), Chunks: totalChunks})
}

// collectDocuments reads documents from a multipart form when present,
// otherwise from the JSON body.
func (s *Server) collectDocuments(c *fiber.Ctx) ([]ingest.Document, error) {
	if form, err := c.MultipartForm(); err == nil && form != nil {
		var docs []ingest.Document
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
			}
			raw, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
			}
			docs = append(docs, ingest.Document{Name: header.Filename, Text: string(raw)})
		}
		return docs, nil
	}

	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	docs := make([]ingest.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, ingest.Document{Name: d.Name, Text: d.Text})
	}
	return docs, nil
}

// handleAsk runs the QA pipeline for a single query. The approval gate is
// never wired over HTTP; requests are noninteractive.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	s.logger.Debug("received question", "query", utils.Truncate(req.Query, 80))

	topK := s.config.TopK
	if req.TopK != nil {
		if *req.TopK <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
		}
		topK = *req.TopK
	}

	decompose := s.config.Decompose
	if req.Decompose != nil {
		decompose = *req.Decompose
	}

	engine := qa.NewGraph(qa.GraphConfig{
		Client:     s.client,
		Store:      s.store,
		Interactor: human.NewSilent(s.logger, nil),
		Decompose:  decompose,
		TopK:       topK,
		Logger:     s.logger,
	})

	start := time.Now()
	final, err := engine.Run(c.Context(), pipeline.State{UserQuery: req.Query})
	if err != nil {
		s.logger.Error("ask pipeline failed", "query", req.Query, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to answer query"})
	}

	s.publishRun(c, "qa", req.Query, start, eventstream.RunMeta{
		Stages:    []string{qa.StageOptimizer, qa.StageRetriever, qa.StageSummarizer},
		Documents: len(final.RetrievedDocuments),
	})

	return c.JSON(AskResponse{
		Summary:    final.Summary,
		Subqueries: final.Subqueries,
		Documents:  final.RetrievedDocuments,
	})
}

// handleDiscover runs the discovery pipeline over a sample of the corpus.
func (s *Server) handleDiscover(c *fiber.Ctx) error {
	var req DiscoverRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.NSample != nil && req.PSample != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "n_sample and p_sample are mutually exclusive"})
	}

	sample := s.config.Sample
	switch {
	case req.NSample != nil:
		sample = sampler.N(*req.NSample)
	case req.PSample != nil:
		sample = sampler.P(*req.PSample)
	}

	total, err := s.store.Count(c.Context())
	if err != nil {
		s.logger.Error("counting documents failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to inspect knowledge base"})
	}

	engine := discovery.NewGraph(discovery.GraphConfig{
		Client:         s.client,
		Store:          s.store,
		Interactor:     human.NewSilent(s.logger, nil),
		Sample:         sample,
		Cluster:        s.config.Cluster,
		MapConcurrency: s.config.MapConcurrency,
		Logger:         s.logger,
	})

	start := time.Now()
	final, err := engine.Run(c.Context(), pipeline.State{})
	if err != nil {
		s.logger.Error("discover pipeline failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to build overview"})
	}

	stats := cluster.Coverage(final.Clusters, total)

	s.publishRun(c, "discovery", "", start, eventstream.RunMeta{
		Stages:    []string{discovery.StageClusterRetrieve, discovery.StageMapSummarize, discovery.StageReduceSummarize},
		Documents: stats.Covered,
		Clusters:  stats.Clusters,
		Orphans:   stats.Orphans,
	})

	return c.JSON(DiscoverResponse{
		Overview:         final.Summary,
		Clusters:         stats.Clusters,
		OrphanPercentage: stats.OrphanPercentage,
		DocumentsSampled: stats.Clusters,
		DocumentsIndexed: total,
	})
}

// handleStats returns knowledge base statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	count, err := s.store.Count(c.Context())
	if err != nil {
		s.logger.Error("counting documents failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to inspect knowledge base"})
	}
	return c.JSON(StatsResponse{Documents: count})
}

// publishRun emits a run event when a publisher is configured. Publish
// failures are logged, never surfaced to the caller.
func (s *Server) publishRun(c *fiber.Ctx, pipelineName, query string, start time.Time, run eventstream.RunMeta) {
	if s.events == nil {
		return
	}

	run.Query = query
	run.DurationMs = time.Since(start).Milliseconds()

	event := eventstream.NewRunCompletedEvent(eventstream.EventSource{
		Pipeline: pipelineName,
		Model:    s.client.Name(),
	}, run)

	if err := s.events.PublishRun(c.Context(), event); err != nil {
		s.logger.Warn("publishing run event failed", "error", err)
	}
}
