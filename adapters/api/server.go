// Package api serves the read-only monitoring surface: drift state,
// validation outcomes and the rendered status report. It only reads
// history; every mutation in the system happens in the scheduled jobs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ratecast/app"
)

const (
	DefaultAddr      = ":8080"
	DefaultRateLimit = 5
	DefaultRateBurst = 10

	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Config holds the monitor server settings.
type Config struct {
	Addr string
	// RateLimit is the sustained requests-per-second budget across all
	// clients; RateBurst is the instantaneous allowance.
	RateLimit float64
	RateBurst int
}

// Server is the monitor HTTP application.
type Server struct {
	router     *chi.Mux
	drift      *app.DriftService
	validation *app.ValidationService
	limiter    *rate.Limiter
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer wires routes and middleware around the two read paths.
func NewServer(cfg Config, drift *app.DriftService, validation *app.ValidationService, log zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	s := &Server{
		router:     chi.NewRouter(),
		drift:      drift,
		validation: validation,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:        log.With().Str("component", "monitor_api").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.rateLimit)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/drift/{horizon}", s.handleDrift)
	s.router.Get("/api/validation/{horizon}", s.handleValidation)
	s.router.Get("/report/{horizon}", s.handleReport)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("monitor API listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
