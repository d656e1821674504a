// Package server provides the HTTP API for Narau.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/narau/narau/internal/answer"
	"github.com/narau/narau/internal/config"
	"github.com/narau/narau/internal/extract"
	"github.com/narau/narau/internal/ingest"
	"github.com/narau/narau/internal/memory"
	"github.com/narau/narau/internal/search"
	"github.com/narau/narau/internal/social"
	"github.com/narau/narau/internal/storage"
)

// Server is the HTTP server for the Narau API.
type Server struct {
	pipeline     *ingest.Pipeline
	engine       *search.Engine
	orchestrator *answer.Orchestrator
	memory       *memory.Memory
	store        storage.Store
	extractor    *extract.Extractor
	social       *social.Client // nil when no page is configured
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. socialClient may be
// nil; the Facebook sync endpoint then reports the feature unconfigured.
func NewServer(
	pipeline *ingest.Pipeline,
	engine *search.Engine,
	orchestrator *answer.Orchestrator,
	mem *memory.Memory,
	store storage.Store,
	extractor *extract.Extractor,
	socialClient *social.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:     pipeline,
		engine:       engine,
		orchestrator: orchestrator,
		memory:       mem,
		store:        store,
		extractor:    extractor,
		social:       socialClient,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/courses", s.handleListCourses)
		r.Route("/courses/{course}", func(r chi.Router) {
			r.Get("/files", s.handleListFiles)
			r.Post("/files", s.handleUploadFile)
			r.Get("/files/{fileName}", s.handleGetFile)
			r.Delete("/files/{fileName}", s.handleDeleteFile)
			r.Post("/links", s.handleIngestLink)
			r.Post("/texts", s.handleIngestText)
			r.Post("/facebook/sync", s.handleFacebookSync)
			r.Get("/facebook/posts", s.handleListFacebookPosts)
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/answer", s.handleAnswer)
			r.Get("/conversation", s.handleConversation)
			r.Get("/feedback", s.handleListFeedback)
			r.Put("/feedback/{userID}", s.handleUpdateFeedback)
		})
		r.Post("/messages/{id}/reaction", s.handleSetReaction)
		r.Post("/feedback", s.handleAddFeedback)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
