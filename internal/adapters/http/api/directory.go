package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/healthreview/internal/domain/model"
)

// DirectoryDependencies defines the read side of clients, metrics, users and
// the presentation schedule.
type DirectoryDependencies interface {
	Clients(ctx context.Context) ([]model.Client, error)
	Metrics(ctx context.Context) ([]model.Metric, error)
	Users(ctx context.Context) ([]model.User, error)
	Schedule(ctx context.Context) ([]model.ScheduleEntry, error)
	ReplaceSchedule(ctx context.Context, entries []model.ScheduleEntry) error
}

// DirectoryHandler handles directory requests.
type DirectoryHandler struct {
	deps DirectoryDependencies
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(deps DirectoryDependencies) *DirectoryHandler {
	return &DirectoryHandler{deps: deps}
}

// HandleClients handles GET /clients.
func (h *DirectoryHandler) HandleClients(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_clients"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	clients, err := h.deps.Clients(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// HandleMetrics handles GET /metrics. Prometheus metrics live on /healthz.
func (h *DirectoryHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_metrics"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	metrics, err := h.deps.Metrics(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// HandleUsers handles GET /users.
func (h *DirectoryHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_users"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	users, err := h.deps.Users(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleSchedule handles GET and PUT /schedule.
func (h *DirectoryHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule"
	switch r.Method {
	case http.MethodGet:
		schedule, err := h.deps.Schedule(r.Context())
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
	case http.MethodPut:
		var entries []model.ScheduleEntry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := h.deps.ReplaceSchedule(r.Context(), entries); err != nil {
			writeServiceError(w, op, err)
			return
		}
		schedule, err := h.deps.Schedule(r.Context())
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
	default:
		methodNotAllowed(w, op, http.MethodGet, http.MethodPut)
	}
}
