// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	DirectoryDependencies
	ReportDependencies
	ScoreDependencies
	SequenceDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	directoryHandler *DirectoryHandler
	reportsHandler   *ReportsHandler
	scoresHandler    *ScoresHandler
	sequenceHandler  *SequenceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		directoryHandler: NewDirectoryHandler(deps),
		reportsHandler:   NewReportsHandler(deps, cfg.now),
		scoresHandler:    NewScoresHandler(deps),
		sequenceHandler:  NewSequenceHandler(deps, cfg.now),
	}
}

type options struct {
	now func() time.Time
}

// Option configures the Server.
type Option func(*options)

// WithClock sets the clock used to pick the current week when none is given.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/clients", MetricsMiddleware(s.directoryHandler.HandleClients, "clients"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.directoryHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/users", MetricsMiddleware(s.directoryHandler.HandleUsers, "users"))
	mux.HandleFunc("/schedule", MetricsMiddleware(s.directoryHandler.HandleSchedule, "schedule"))
	mux.HandleFunc("/reports", MetricsMiddleware(s.reportsHandler.HandleGetReports, "reports"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePutScore, "scores"))
	mux.HandleFunc("/sequence", MetricsMiddleware(s.sequenceHandler.HandleGetSequence, "sequence"))
	mux.HandleFunc("/sequence/summary", MetricsMiddleware(s.sequenceHandler.HandleGetSummary, "sequence_summary"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// writeServiceError classifies err and writes it.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func methodNotAllowed(w http.ResponseWriter, op string, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, NewKind(op, ErrMethodNotAllowed))
}

// weekParam reads ?week=, defaulting to the week containing now.
func weekParam(r *http.Request, now func() time.Time) (model.Week, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("week"))
	if raw == "" {
		return model.WeekOf(now()), nil
	}
	return model.ParseWeek(raw)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, errors.New("missing " + name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + "; must be an integer")
	}
	return n, nil
}
