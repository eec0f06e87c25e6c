// Package api exposes the commander over HTTP: placing orders, reading order
// status from the saga log, health and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds HTTP server settings.
type Config struct {
	Port int `yaml:"port"`
}

// Server is the HTTP front of the commander.
type Server struct {
	cfg  Config
	srv  *http.Server
	log  *slog.Logger
	hdlr *Handler
}

// NewServer creates the server and its router.
func NewServer(cfg Config, hdlr *Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	s := &Server{cfg: cfg, hdlr: hdlr, log: log.With("component", "api")}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the chi router. Exposed separately so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/orders", s.hdlr.PlaceOrder)
	r.Get("/orders/{id}", s.hdlr.GetOrder)
	r.Get("/healthz", s.hdlr.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
