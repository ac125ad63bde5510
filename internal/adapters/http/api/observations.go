package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/types"
)

// ObservationDependencies accepts scouting observations.
type ObservationDependencies interface {
	// SubmitObservation validates o and queues it. duplicate is true when
	// the id was already ingested or is still queued. A full queue is
	// reported as queue.ErrQueueFull.
	SubmitObservation(ctx context.Context, o model.Observation) (duplicate bool, err error)
}

// ObservationHandler handles observation submissions.
type ObservationHandler struct {
	deps ObservationDependencies
}

// NewObservationHandler creates a new observation handler.
func NewObservationHandler(deps ObservationDependencies) *ObservationHandler {
	return &ObservationHandler{deps: deps}
}

// HandlePostObservation handles POST /observations requests.
func (h *ObservationHandler) HandlePostObservation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_observation"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var o model.Observation
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := o.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.SubmitObservation(r.Context(), o)
	switch {
	case err != nil && isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case isBackpressure(err):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case err != nil && isInvalid(err):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	case duplicate:
		writeJSON(w, http.StatusOK, types.Ack{Status: types.StatusDuplicate, Duplicate: true})
	default:
		writeJSON(w, http.StatusAccepted, types.Ack{Status: types.StatusAccepted})
	}
}
