// Package server exposes vidquery sessions to the browser as a JSON API
// with a websocket for state and seek pushes.
package server

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidquery/vidquery/internal/httputil"
	"github.com/vidquery/vidquery/internal/ratelimit"
	"github.com/vidquery/vidquery/internal/session"
	"github.com/vidquery/vidquery/internal/upload"
	"github.com/vidquery/vidquery/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// BlobSource opens stored objects for upload. The returned closer is
// released once the upload completes.
type BlobSource interface {
	Open(ctx context.Context, key string) (upload.Blob, io.ReadCloser, error)
}

type Config struct {
	Sessions       *session.Registry
	Storage        BlobSource
	Pinger         Pinger
	WebFS          fs.FS
	BaseURL        string
	MediaOrigin    string
	MaxUploadBytes int64
	// SearchRate and UploadRate are requests per second per session.
	SearchRate     float64
	UploadRate     float64
	PingPeriod     time.Duration
	WriteWait      time.Duration
}

type Server struct {
	router         chi.Router
	sessions       *session.Registry
	storage        BlobSource
	pinger         Pinger
	webFS          fs.FS
	maxUploadBytes int64
	searchLimiter  *ratelimit.Limiter
	uploadLimiter  *ratelimit.Limiter
	ws             wsSettings
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:     cfg.BaseURL,
		MediaOrigin: cfg.MediaOrigin,
	}))

	if cfg.SearchRate <= 0 {
		cfg.SearchRate = 2
	}
	if cfg.UploadRate <= 0 {
		cfg.UploadRate = 0.2
	}

	s := &Server{
		router:         r,
		sessions:       cfg.Sessions,
		storage:        cfg.Storage,
		pinger:         cfg.Pinger,
		webFS:          cfg.WebFS,
		maxUploadBytes: cfg.MaxUploadBytes,
		searchLimiter:  ratelimit.NewLimiter(cfg.SearchRate, 10, ratelimit.WithKey(sessionKey)),
		uploadLimiter:  ratelimit.NewLimiter(cfg.UploadRate, 3, ratelimit.WithKey(sessionKey)),
		ws:             newWSSettings(cfg.PingPeriod, cfg.WriteWait),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunLimiters sweeps idle rate-limit buckets until ctx is done.
func (s *Server) RunLimiters(ctx context.Context) {
	go s.searchLimiter.Run(ctx)
	go s.uploadLimiter.Run(ctx)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/state", s.handleState)
		r.With(s.searchLimiter.Middleware).Post("/search", s.handleSearch)
		r.With(s.uploadLimiter.Middleware).Post("/upload", s.handleUpload)
		r.With(s.uploadLimiter.Middleware).Post("/upload/import", s.handleImport)

		r.Get("/videos", s.handleListVideos)
		r.Post("/videos/refresh", s.handleRefreshVideos)
		r.Delete("/videos/{id}", s.handleDeleteVideo)

		r.Post("/nav/videos", s.handleOpenVideos)
		r.Post("/nav/home", s.handleBackToSearch)
		r.Post("/nav/select/{id}", s.handleSelectVideo)
		r.Post("/results/{index}/jump", s.handleJump)
		r.Get("/player/markers", s.handleMarkers)
		r.Delete("/errors/{source}", s.handleDismissError)

		r.Get("/ws", s.handleWebSocket)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, http.StatusNotFound, "not found")
		})
	})

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}

type healthResponse struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.sessions != nil {
		resp.Sessions = s.sessions.Len()
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = "storage unreachable"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
