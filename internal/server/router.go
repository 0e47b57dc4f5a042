// Package server implements the HTTP server and routing logic.
package server

import (
	"log/slog"
	"net/http"

	"github.com/noteleaf/noteleaf/internal/content"
	"github.com/noteleaf/noteleaf/internal/server/handlers"
	"github.com/noteleaf/noteleaf/internal/server/ratelimit"
)

// Server holds the state shared by all HTTP handlers.
type Server struct {
	svc          *content.Service
	jwtSecret    []byte
	limiter      *ratelimit.Limiter
	logger       *slog.Logger
	maxBodyBytes int64
}

// Options configures a Server.
type Options struct {
	Service   *content.Service
	JWTSecret []byte
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
	// MaxBodyBytes caps JSON request bodies. Zero means no limit.
	MaxBodyBytes int64
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		svc:          opts.Service,
		jwtSecret:    opts.JWTSecret,
		limiter:      opts.Limiter,
		logger:       opts.Logger,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	nh := handlers.NewNodeHandler(s.svc)
	uh := handlers.NewUploadHandler(s.svc)
	hh := handlers.NewHealthHandler()

	// Health check
	mux.Handle("GET /healthz", Wrap(s, hh.Health))

	// Node tree endpoints
	mux.Handle("POST /api/v1/nodes", WrapAuth(s, nh.Create))
	mux.Handle("GET /api/v1/nodes", WrapAuth(s, nh.ListRoot))
	mux.Handle("GET /api/v1/nodes/{id}", WrapAuth(s, nh.Get))
	mux.Handle("GET /api/v1/nodes/{id}/children", WrapAuth(s, nh.ListChildren))
	mux.Handle("POST /api/v1/nodes/{id}/move", WrapAuth(s, nh.Move))
	mux.Handle("POST /api/v1/nodes/duplicate", WrapAuth(s, nh.Duplicate))
	mux.Handle("PATCH /api/v1/nodes/{id}", WrapAuth(s, nh.Rename))
	mux.Handle("DELETE /api/v1/nodes/{id}", WrapAuth(s, nh.Delete))

	// Upload lifecycle endpoints
	mux.Handle("POST /api/v1/uploads", WrapAuth(s, uh.Initiate))
	mux.Handle("POST /api/v1/uploads/{id}/finalize", WrapAuth(s, uh.Finalize))
	mux.Handle("POST /api/v1/uploads/direct", WrapAuth(s, uh.Direct))

	return s.logRequests(mux)
}
