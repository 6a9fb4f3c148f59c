// Package web provides the HTTP API for uploading tabular files and
// converting them to JSON or JSONL.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bkv/matrix-normalizer/internal/config"
	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/job"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

// Server is the HTTP server for the conversion API.
type Server struct {
	cfg       *config.Config
	files     *storage.Store
	validator *storage.Validator
	svc       *convert.Service
	runner    *job.Runner
	router    *chi.Mux
	server    *http.Server
}

// NewServer wires the API server over the file store and job runner.
func NewServer(cfg *config.Config, files *storage.Store, svc *convert.Service, runner *job.Runner) *Server {
	s := &Server{
		cfg:       cfg,
		files:     files,
		validator: &storage.Validator{MaxSize: cfg.Storage.MaxFileSize},
		svc:       svc,
		runner:    runner,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Uploads get a tighter limit than the rest of the API.
		upload := r
		if s.cfg.Rate.Enabled {
			ul := newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute)
			upload = r.With(ul.middleware)
		}
		upload.Post("/upload", s.handleUpload)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/{fileID}", s.handleGetFile)
		r.Delete("/files/{fileID}", s.handleDeleteFile)

		r.Get("/preview/{fileID}", s.handlePreview)
		r.Post("/preview/{fileID}", s.handlePreview)

		r.Post("/convert/{fileID}", s.handleConvert)
		r.Get("/status/{jobID}", s.handleStatus)
		r.Get("/download/{jobID}", s.handleDownload)

		r.Get("/formats", s.handleFormats)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
