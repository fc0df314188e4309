// Package web provides the HTTP API for extracting, reviewing and saving
// borehole logs.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/strata/internal/config"
	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/session"
	"github.com/JonMunkholm/strata/internal/sheet"
	"github.com/JonMunkholm/strata/internal/storage"
	"github.com/JonMunkholm/strata/internal/web/middleware"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Decoder   *sheet.Decoder
	Extractor *core.Extractor
	Limiter   *core.ExtractionLimiter
	Persister *core.Persister
	Sessions  *session.Manager
	Store     storage.Store
	Logger    *slog.Logger
}

// Server is the strata HTTP server.
type Server struct {
	deps   Deps
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
	logger *slog.Logger

	limiters  []*ipLimiter
	stop      chan struct{}
	closeOnce sync.Once
}

// NewServer wires middleware and routes.
func NewServer(deps Deps, cfg *config.Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		stop:   make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst).middleware(s))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.APIKeyUsers(), s.cfg.Security.RequireAPIKey))

		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newLimiter(s.cfg.Rate.ExtractPerMinute, 1).middleware(s))
			}
			r.Post("/extract", s.handleExtract)
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCancelSession)
			r.Post("/merge", s.handleMerge)
			r.Post("/validate", s.handleValidate)
			r.Post("/acknowledge", s.handleAcknowledge)
			r.Post("/save", s.handleSave)

			r.Route("/layers/{index}", func(r chi.Router) {
				r.Put("/material", s.handleUpdateMaterial)
				r.Put("/depths", s.handleUpdateDepths)
				r.Post("/split", s.handleSplit)
				r.Delete("/", s.handleDeleteLayer)
			})
		})

		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
	})
}

func (s *Server) newLimiter(perMinute, burst int) *ipLimiter {
	l := newIPLimiter(perMinute, burst)
	s.limiters = append(s.limiters, l)
	go l.runSweeper(time.Minute, s.stop)
	return l
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the limiter sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}
