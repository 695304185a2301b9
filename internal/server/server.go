// Package server is the development collector's HTTP surface: it accepts
// the tracker's batch format and stores it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/visiora/visiora-agent/internal/database"
	"github.com/visiora/visiora-agent/internal/models"
)

// Options tune the HTTP server. Zero values fall back to defaults.
type Options struct {
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type Server struct {
	db      *database.Database
	address string
	opts    Options
	logger  *slog.Logger
	server  *http.Server
}

func NewServer(db *database.Database, address string, opts Options, logger *slog.Logger) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:      db,
		address: address,
		opts:    opts,
		logger:  logger,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleIngest(w http.ResponseWriter, request *http.Request) {
	body := http.MaxBytesReader(w, request.Body, s.opts.MaxBodyBytes)
	var batch models.Batch
	if err := json.NewDecoder(body).Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Batch too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.db.InsertEvents(batch.Events); err != nil {
		if errors.Is(err, database.ErrInvalidEvent) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("database error", slog.String("error", err.Error()))
		http.Error(w, "Failed to store events", http.StatusInternalServerError)
		return
	}
	s.logger.Debug("batch stored", slog.Int("events", len(batch.Events)))
	w.WriteHeader(http.StatusNoContent) // success, no body
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	counts, err := s.db.CountByType()
	if err != nil {
		s.logger.Error("database error", slog.String("error", err.Error()))
		http.Error(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}

	total := 0
	byType := make(map[string]int, len(models.EventTypes))
	for _, t := range models.EventTypes {
		byType[string(t)] = counts[t]
		total += counts[t]
	}
	writeJSON(w, map[string]any{"total": total, "by_type": byType})
}

func (s *Server) handleRecent(w http.ResponseWriter, request *http.Request) {
	limit := 50
	if raw := request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	stored, err := s.db.RecentEvents(limit)
	if err != nil {
		s.logger.Error("database error", slog.String("error", err.Error()))
		http.Error(w, "Failed to read events", http.StatusInternalServerError)
		return
	}
	events := make([]models.Event, 0, len(stored))
	for _, e := range stored {
		events = append(events, e.Event)
	}
	writeJSON(w, models.Batch{Events: events})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Post("/ingest", s.handleIngest)
	r.Post("/events", s.handleIngest)
	r.Get("/events", s.handleRecent)
	return r
}

// Handler returns the collector's routes.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("visiora collector listening", slog.String("address", listener.Addr().String()))
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownContext, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}

	s.logger.Info("server exited")
	return nil
}
