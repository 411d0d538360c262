// Package server provides the HTTP API for reposync.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/config"
	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/projectstate"
	"github.com/hyperjump/reposync/internal/storage"
)

// IndexService starts index jobs and reports their state.
type IndexService interface {
	Status() *models.IndexJobState
	StartInitialIndex() (*models.IndexJobState, error)
	StartUpdateIndex(commit string) (*models.IndexJobState, error)
	StartFullReloadIndex(commit string) (*models.IndexJobState, error)
	TrackedFiles(ctx context.Context) ([]string, error)
}

// MetadataReader returns the persisted project metadata, creating it when absent.
type MetadataReader interface {
	GetOrCreate(ctx context.Context) (*projectstate.State, error)
}

// Server is the HTTP server for the reposync API.
type Server struct {
	index    IndexService
	metadata MetadataReader
	store    storage.Store
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. cfg is used for the listen
// address and the status report.
func NewServer(
	index IndexService,
	metadata MetadataReader,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		index:    index,
		metadata: metadata,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/index", func(r chi.Router) {
			r.Post("/initial", s.handleStartInitial)
			r.Post("/update", s.handleStartUpdate)
			r.Post("/reload", s.handleStartReload)
			r.Get("/status", s.handleIndexStatus)
			r.Get("/tracked-files", s.handleTrackedFiles)
		})
		r.Get("/metadata", s.handleMetadata)
		r.Get("/store/files", s.handleStoreFiles)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
