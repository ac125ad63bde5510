package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/scoutspr/internal/domain/types"
)

// SolveDependencies runs a rating solve on demand.
type SolveDependencies interface {
	Solve(ctx context.Context, verbose bool) (types.Report, error)
}

// SolveHandler handles solve requests.
type SolveHandler struct {
	deps SolveDependencies
}

// NewSolveHandler creates a new solve handler.
func NewSolveHandler(deps SolveDependencies) *SolveHandler {
	return &SolveHandler{deps: deps}
}

// HandleSolve handles POST /solve?verbose=true requests.
func (h *SolveHandler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.solve"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	verbose := false
	if v := r.URL.Query().Get("verbose"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		verbose = b
	}
	rep, err := h.deps.Solve(r.Context(), verbose)
	if err != nil {
		writeFailure(w, op, "not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
