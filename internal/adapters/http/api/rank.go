package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/scoutspr/internal/domain/types"
)

var errInvalidScout = errors.New("scout id must be a single path segment")

// RankDependencies looks up one scout in the published report.
type RankDependencies interface {
	Rank(ctx context.Context, scoutID string) (types.Entry, error)
}

// RankHandler serves a single scout's leaderboard entry.
type RankHandler struct {
	deps RankDependencies
}

func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{scout_id}. Scouts that were filtered out
// of the last solve or never scouted are 404.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	scoutID, ok := pathParam(r, "/rank/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errInvalidScout))
		return
	}
	entry, err := h.deps.Rank(r.Context(), scoutID)
	if err != nil {
		writeFailure(w, op, "not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
