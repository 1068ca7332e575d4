// Package api exposes the detection engine and the reading store over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server wraps the HTTP listener with its router and graceful shutdown.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewRouter assembles the route table. Every route is instrumented with the
// request counter and duration histogram.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	m := h.Metrics

	r.Handle("/health", m.WrapHandler("/health", http.HandlerFunc(h.Health))).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Handle("/detect", m.WrapHandler("/v1/detect", http.HandlerFunc(h.Detect))).Methods(http.MethodPost)
	v1.Handle("/readings", m.WrapHandler("/v1/readings", http.HandlerFunc(h.Ingest))).Methods(http.MethodPost)
	v1.Handle("/readings", m.WrapHandler("/v1/readings", http.HandlerFunc(h.Readings))).Methods(http.MethodGet)
	v1.Handle("/readings", m.WrapHandler("/v1/readings", http.HandlerFunc(h.ClearReadings))).Methods(http.MethodDelete)
	v1.Handle("/readings/stats", m.WrapHandler("/v1/readings/stats", http.HandlerFunc(h.ReadingStats))).Methods(http.MethodGet)
	v1.Handle("/report", m.WrapHandler("/v1/report", http.HandlerFunc(h.Report))).Methods(http.MethodGet)

	return r
}

func NewServer(addr string, log *slog.Logger, h *Handlers) *Server {
	router := NewRouter(h)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           gorilla.LoggingHandler(os.Stdout, router),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("http_listen", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http_shutdown")
	return s.httpServer.Shutdown(ctx)
}
