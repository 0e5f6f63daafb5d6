package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/healthreview/internal/domain/types"
)

// ScoreDependencies defines the score mutation.
type ScoreDependencies interface {
	SetScore(ctx context.Context, change types.ScoreChange) (types.ScoreChangeAck, error)
}

// ScoresHandler handles score writes.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePutScore handles PUT /scores. The request id may also arrive in the
// Idempotency-Key header.
func (h *ScoresHandler) HandlePutScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_score"
	if r.Method != http.MethodPut {
		methodNotAllowed(w, op, http.MethodPut)
		return
	}
	var req types.ScoreChange
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}

	ack, err := h.deps.SetScore(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
