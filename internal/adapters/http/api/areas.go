package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/paulmach/orb"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// AreaDependencies defines the interface for area submissions.
type AreaDependencies interface {
	SubmitSelection(ctx context.Context, ring orb.Ring) (model.Job, bool, error)
}

// AreasHandler handles area submissions.
type AreasHandler struct {
	deps AreaDependencies
}

// NewAreasHandler creates a new areas handler.
func NewAreasHandler(deps AreaDependencies) *AreasHandler {
	return &AreasHandler{deps: deps}
}

// HandlePostArea handles POST /areas requests.
func (h *AreasHandler) HandlePostArea(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_area"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	job, duplicate, err := h.deps.SubmitSelection(r.Context(), req.toRing())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	if duplicate {
		writeJSON(w, http.StatusOK, submitResponse{
			JobID:     job.ID,
			Status:    "duplicate",
			Duplicate: true,
			Submitted: job.SubmittedAt,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:     job.ID,
		Status:    "accepted",
		Submitted: job.SubmittedAt,
	})
}
