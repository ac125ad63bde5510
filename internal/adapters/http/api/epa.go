package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/scoutspr/internal/domain/types"
)

var errInvalidTeam = errors.New("team must be a positive integer")

// EPADependencies reads averaged team contributions.
type EPADependencies interface {
	// TeamEPA averages a team's observations; year 0 uses all seasons.
	TeamEPA(ctx context.Context, team, year int) (types.TeamEPA, error)
}

// EPAHandler handles team EPA requests.
type EPAHandler struct {
	deps EPADependencies
}

// NewEPAHandler creates a new EPA handler.
func NewEPAHandler(deps EPADependencies) *EPAHandler {
	return &EPAHandler{deps: deps}
}

// HandleGetEPA handles GET /epa/{team}?year=Y requests.
func (h *EPAHandler) HandleGetEPA(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_epa"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw, _ := pathParam(r, "/epa/")
	team, err := strconv.Atoi(raw)
	if err != nil || team <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errInvalidTeam))
		return
	}
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		year, err = strconv.Atoi(y)
		if err != nil || year < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	out, err := h.deps.TeamEPA(r.Context(), team, year)
	if err != nil {
		writeFailure(w, op, "not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
