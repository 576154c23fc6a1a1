// Package api exposes job submission, document intake and index
// administration over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

// JobQueue submits and reports jobs.
type JobQueue interface {
	Submit(ctx context.Context, kind jobs.Kind, inputs []string) (string, error)
	Status(ctx context.Context, id string) (*jobs.Record, error)
	List(ctx context.Context, limit int) ([]jobs.Record, error)
}

// Rebuilder empties the index under the maintenance lock.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// LinkScraper lists the PDF links of a web page.
type LinkScraper interface {
	PDFLinks(ctx context.Context, pageURL string) ([]string, error)
}

// Config holds server configuration.
type Config struct {
	Addr string
	// WorkDir receives uploaded files.
	WorkDir string
	// MaxUploadBytes caps a single upload.
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Deps are the services the API delegates to.
type Deps struct {
	Queue     JobQueue
	Index     storage.Index
	Rebuilder Rebuilder
	Scraper   LinkScraper
}

// Server serves the HTTP API.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server and builds its routes.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth(s.deps.Index))

	r.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", handleSubmitJob(s.deps.Queue))
			r.Get("/", handleListJobs(s.deps.Queue))
			r.Get("/{id}", handleGetJob(s.deps.Queue))
		})
		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", handleUpload(s.deps.Queue, s.cfg.WorkDir, s.cfg.MaxUploadBytes, s.logger))
			r.Post("/load", handleLoad(s.deps.Queue))
			r.Post("/scrape", handleScrape(s.deps.Queue, s.deps.Scraper))
		})
		r.Route("/index", func(r chi.Router) {
			r.Get("/count", handleCount(s.deps.Index))
			r.Get("/query", handleQuery(s.deps.Index))
			r.Post("/rebuild", handleRebuild(s.deps.Rebuilder))
		})
	})

	return r
}

// Mount attaches an additional handler, such as the MCP endpoint.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

// Handle registers h for an exact pattern.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), reqLogger)))
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
