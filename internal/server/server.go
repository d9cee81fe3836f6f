// Package server provides the HTTP chat UI and API for uploading documents and
// asking questions about them.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/pdfqa/internal/chat"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/loader"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Pipeline is the question-answering backend the server drives.
type Pipeline interface {
	Answer(ctx context.Context, question string) (*models.QueryResult, error)
	AnswerFiltered(ctx context.Context, question string) (*models.QueryResult, error)
	Rebuild(ctx context.Context) (*loader.Report, error)
	Documents() ([]models.SourceFile, error)
	SaveDocument(name string, r io.Reader) (*models.SourceFile, error)
	RemoveDocument(ctx context.Context, name string) (*loader.Report, error)
	Status() (*rag.Status, error)
}

// Server is the HTTP server for the chat UI and API.
type Server struct {
	pipeline Pipeline
	sessions *chat.Sessions
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(pipeline Pipeline, sessions *chat.Sessions, cfg *config.Config, logger *zap.Logger) *Server {
	if sessions == nil {
		sessions = chat.NewSessions()
	}
	return &Server{
		pipeline: pipeline,
		sessions: sessions,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleUploadDocuments)
		r.Delete("/documents/{name}", s.handleDeleteDocument)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/messages", s.handleMessage)
		r.Get("/sessions/{id}/history", s.handleHistory)
	})
	return r
}

// requestTimeout leaves room for a full model call plus retrieval.
func (s *Server) requestTimeout() time.Duration {
	secs := s.config.LLM.TimeoutSeconds
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs+60) * time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", "http://"+addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
