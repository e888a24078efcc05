package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bookcal/internal/catalog"
	"bookcal/internal/config"
	"bookcal/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server exposes the booking store to UI collaborators over HTTP.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
	logger  *zerolog.Logger
	server  *http.Server
}

func NewServer(cfg *config.Config, st *store.Store, cat *catalog.Catalog, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		catalog: cat,
		logger:  logger,
	}

	auth := newAuth(cfg.Auth)
	limiter := newRateLimiter(cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.middleware)
		r.Use(limiter.middleware)

		r.Get("/apartments", s.handleListApartments)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/export/bookings.xlsx", s.handleExport)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", s.handleListBookings)
			r.Post("/", s.handleCreateBooking)
			r.Get("/{id}", s.handleGetBooking)
			r.Patch("/{id}", s.handleUpdateBooking)
			r.Delete("/{id}", s.handleDeleteBooking)
			r.Post("/{id}/extend", s.handleExtendBooking)
		})
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
