// Package server exposes the report engine over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contact-metrics/config"
	"contact-metrics/engine"
	"contact-metrics/formatter"
	"contact-metrics/metrics"
	"contact-metrics/middleware"
	"contact-metrics/parser"
	"contact-metrics/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds an uploaded event file.
const maxBodyBytes = 64 << 20

// Server serves report requests against one engine and store.
type Server struct {
	engine *engine.Engine
	store  storage.Store
	cfg    *config.Config
	logger zerolog.Logger
	now    func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the wall clock read once per request.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server.
func New(eng *engine.Engine, store storage.Store, cfg *config.Config, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/reports", s.handleReport)
		r.Get("/agents/{agentId}/history", s.handleAgentHistory)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Msgf("server listening on :%s", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"contact-metrics"}`)
}

// handleReport computes a report from a CSV body.
// POST /api/reports?format=json|csv|text&table=...&delimiter=...&persist=true
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.cfg.Location()

	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" && format != "text" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("format must be one of: text, json, csv (got: %s)", format))
		return
	}
	table := q.Get("table")
	if table == "" {
		table = formatter.TableCapacity
	}
	delimiter, err := formatter.ParseDelimiter(q.Get("delimiter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inputDelimiter, err := formatter.ParseDelimiter(q.Get("input_delimiter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := engine.FilterSpec{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Date:     q.Get("date"),
		Sectors:  q["sector"],
		Agents:   q["agent"],
		Channels: q["channel"],
	}.Build(loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now().In(loc)
	if v := q.Get("now"); v != "" {
		if now, err = engine.ParseTime(v, loc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	persist := false
	if v := q.Get("persist"); v != "" {
		if persist, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "persist must be a boolean")
			return
		}
	}

	res, err := parser.Parse(http.MaxBytesReader(w, r.Body, maxBodyBytes), parser.Options{
		Location:     loc,
		UnknownLabel: s.cfg.UnknownLabel,
		Comma:        inputDelimiter,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected malformed input")
		writeError(w, statusFor(err), err.Error())
		return
	}

	report := s.engine.RunParsed(res, engine.Query{Filter: filter, Now: now})
	runID := uuid.NewString()

	if persist {
		if err := s.store.SaveReport(r.Context(), runID, report, now); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to persist report")
			writeError(w, http.StatusBadGateway, "failed to persist report")
			return
		}
	}

	w.Header().Set("X-Run-Id", runID)
	switch format {
	case "json":
		body, err := formatter.FormatJSON(report)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to render report")
			writeError(w, http.StatusInternalServerError, "failed to render report")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	case "csv":
		body, err := formatter.FormatCSV(report, table, delimiter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, table))
		fmt.Fprint(w, body)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, formatter.FormatText(report))
	}
}

// statusFor maps input errors onto a response status. Every parse failure
// is a client error.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
