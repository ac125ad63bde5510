// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/scoutspr/internal/adapters/mq/queue"
	"github.com/okian/scoutspr/internal/adapters/repository"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/types"
	"github.com/okian/scoutspr/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ObservationDependencies
	ResultDependencies
	SolveDependencies
	LeaderboardDependencies
	RankDependencies
	EPADependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	observationHandler *ObservationHandler
	resultHandler      *ResultHandler
	solveHandler       *SolveHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	epaHandler         *EPAHandler
	log                logger.Logger
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// leaderboard page size.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		observationHandler: NewObservationHandler(deps),
		resultHandler:      NewResultHandler(deps),
		solveHandler:       NewSolveHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		epaHandler:         NewEPAHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.instrument("healthz", s.healthHandler.HandleHealth))
	mux.HandleFunc("/stats", s.instrument("stats", s.statsHandler.HandleStats))
	mux.HandleFunc("/observations", s.instrument("observations", s.observationHandler.HandlePostObservation))
	mux.HandleFunc("/results", s.instrument("results", s.resultHandler.HandlePostResult))
	mux.HandleFunc("/solve", s.instrument("solve", s.solveHandler.HandleSolve))
	mux.HandleFunc("/leaderboard", s.instrument("leaderboard", s.leaderboardHandler.HandleGetLeaderboard))
	mux.HandleFunc("/rank/", s.instrument("rank", s.rankHandler.HandleGetRank))
	mux.HandleFunc("/epa/", s.instrument("epa", s.epaHandler.HandleGetEPA))
}

var errEncode = errors.New("response could not be encoded")

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(types.ErrorResponse{
			Code:    "encode_error",
			Message: fmt.Errorf("%w: %w", errEncode, err).Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// pathParam returns the single path segment after prefix. ok is false when
// the segment is empty or nested.
func pathParam(r *http.Request, prefix string) (string, bool) {
	v := strings.TrimPrefix(r.URL.Path, prefix)
	if v == "" || strings.Contains(v, "/") {
		return "", false
	}
	return v, true
}

// writeFailure answers a failed dependency call: 503 while the service is
// not running, 404 with notFoundCode when the resource is missing, 500
// otherwise.
func writeFailure(w http.ResponseWriter, op, notFoundCode string, err error) {
	switch {
	case isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case isNotFound(err):
		writeError(w, http.StatusNotFound, notFoundCode, WrapKind(op, ErrNotFound, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// isNotFound reports whether err means the requested resource does not
// exist yet.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrNoReport) ||
		errors.Is(err, repository.ErrNoTeamData)
}

// isUnavailable reports whether err means the service is stopped or
// stopping. Errors opt in through an Unavailable method.
func isUnavailable(err error) bool {
	var u interface{ Unavailable() bool }
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, queue.ErrQueueClosed) ||
		(errors.As(err, &u) && u.Unavailable())
}

// isBackpressure reports whether err means ingestion is saturated.
func isBackpressure(err error) bool {
	return errors.Is(err, ErrBackpressure) || errors.Is(err, queue.ErrQueueFull)
}

// isInvalid reports whether err rejects the caller's input.
func isInvalid(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, model.ErrInvalidObservation) ||
		errors.Is(err, model.ErrInvalidResult) ||
		errors.Is(err, repository.ErrInvalidLimit)
}
