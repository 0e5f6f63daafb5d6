package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/types"
)

// SequenceDependencies defines the presenter sequence reads.
type SequenceDependencies interface {
	Sequence(ctx context.Context, week model.Week) (types.SequenceView, error)
	Summary(ctx context.Context, week model.Week, position int) (health.Slide, error)
}

// SequenceHandler handles sequence requests.
type SequenceHandler struct {
	deps SequenceDependencies
	now  func() time.Time
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(deps SequenceDependencies, now func() time.Time) *SequenceHandler {
	return &SequenceHandler{deps: deps, now: now}
}

// HandleGetSequence handles GET /sequence?week=.
func (h *SequenceHandler) HandleGetSequence(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_sequence"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	week, err := weekParam(r, h.now)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.Sequence(r.Context(), week)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetSummary handles GET /sequence/summary?week=&position=.
func (h *SequenceHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	week, err := weekParam(r, h.now)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	position, err := intParam(r, "position")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	slide, err := h.deps.Summary(r.Context(), week, position)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, slide)
}
