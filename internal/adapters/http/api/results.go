package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/types"
)

var errMissingMatch = errors.New("match_number must be positive")

// ResultDependencies stores official match results.
type ResultDependencies interface {
	PutResult(ctx context.Context, match int, r model.OfficialResult) error
}

// ResultHandler handles official result uploads.
type ResultHandler struct {
	deps ResultDependencies
}

// NewResultHandler creates a new result handler.
func NewResultHandler(deps ResultDependencies) *ResultHandler {
	return &ResultHandler{deps: deps}
}

// HandlePostResult handles POST /results requests. A second upload for the
// same match replaces the first.
func (h *ResultHandler) HandlePostResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_result"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.MatchNumber <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingMatch))
		return
	}
	res := req.Result()
	if err := res.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.PutResult(r.Context(), req.MatchNumber, res); err != nil {
		writeFailure(w, op, "not_found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
