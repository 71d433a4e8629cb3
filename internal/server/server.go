package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/dailyrun/internal/logging"
	"github.com/michaelbrown/dailyrun/internal/storage"
)

// ScheduleInfo exposes the state of the daily trigger.
type ScheduleInfo interface {
	Spec() string
	Timezone() string
	Next() time.Time
}

// Server is a read-only HTTP status API for a scheduling controller.
type Server struct {
	store    storage.Store
	schedule ScheduleInfo
	router   chi.Router
	http     *http.Server
	started  time.Time
}

// New creates a new Server.
func New(store storage.Store, schedule ScheduleInfo) *Server {
	s := &Server{
		store:    store,
		schedule: schedule,
		router:   chi.NewRouter(),
		started:  time.Now(),
	}
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/health", s.handleHealth)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/launches", s.handleListLaunches)
		r.Get("/launches/{id}", s.handleGetLaunch)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called. Calling Shutdown first
// makes Start return nil without serving.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	logging.Info("status API listening", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("shutting down status API")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
