package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/healthreview/internal/domain/model"
)

// ReportDependencies defines the interface for weekly report reads.
type ReportDependencies interface {
	Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error)
}

// ReportsHandler handles report requests.
type ReportsHandler struct {
	deps ReportDependencies
	now  func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps ReportDependencies, now func() time.Time) *ReportsHandler {
	return &ReportsHandler{deps: deps, now: now}
}

// HandleGetReports handles GET /reports?week=YYYY-MM-DD.
func (h *ReportsHandler) HandleGetReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_reports"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	week, err := weekParam(r, h.now)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	reports, err := h.deps.Reports(r.Context(), week)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}
