package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/scoutspr/internal/adapters/http/api"
	"github.com/okian/scoutspr/internal/adapters/mq/queue"
	"github.com/okian/scoutspr/internal/adapters/repository"
	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	seen      map[string]bool
	submitErr error
	submitted []model.Observation

	results map[int]model.OfficialResult

	report   types.Report
	solveErr error
	verbose  bool

	entries []types.Entry
	lbErr   error
	limit   int

	teams map[int]types.TeamEPA
	year  int
}

// stoppedError stands in for the service's not-started error.
type stoppedError struct{}

func (stoppedError) Error() string     { return "service not started" }
func (stoppedError) Unavailable() bool { return true }

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		seen:    make(map[string]bool),
		results: make(map[int]model.OfficialResult),
		teams:   make(map[int]types.TeamEPA),
	}
}

func (m *mockDependencies) SubmitObservation(_ context.Context, o model.Observation) (bool, error) {
	if m.submitErr != nil {
		return false, m.submitErr
	}
	if m.seen[o.ID] {
		return true, nil
	}
	m.seen[o.ID] = true
	m.submitted = append(m.submitted, o)
	return false, nil
}

func (m *mockDependencies) PutResult(_ context.Context, match int, r model.OfficialResult) error {
	m.results[match] = r
	return nil
}

func (m *mockDependencies) Solve(_ context.Context, verbose bool) (types.Report, error) {
	m.verbose = verbose
	return m.report, m.solveErr
}

func (m *mockDependencies) Leaderboard(_ context.Context, n int) (types.Leaderboard, error) {
	m.limit = n
	if m.lbErr != nil {
		return types.Leaderboard{}, m.lbErr
	}
	out := m.entries
	if n < len(out) {
		out = out[:n]
	}
	return types.Leaderboard{Total: len(m.entries), Entries: out, ConvergenceAchieved: true}, nil
}

func (m *mockDependencies) Rank(_ context.Context, scoutID string) (types.Entry, error) {
	if m.lbErr != nil {
		return types.Entry{}, m.lbErr
	}
	for _, e := range m.entries {
		if e.ScoutID == scoutID {
			return e, nil
		}
	}
	return types.Entry{}, repository.ErrNotFound
}

func (m *mockDependencies) TeamEPA(_ context.Context, team, year int) (types.TeamEPA, error) {
	m.year = year
	out, ok := m.teams[team]
	if !ok {
		return types.TeamEPA{}, fmt.Errorf("team %d: %w", team, api.ErrNotFound)
	}
	return out, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newMux(deps *mockDependencies, maxLimit int) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"observations": 7}}, maxLimit)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) types.ErrorResponse {
	var out types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

const validObservation = `{
	"id": "obs-1",
	"match_number": 3,
	"alliance": "red",
	"alliance_position": 1,
	"team_number": 254,
	"scouter_id": "alice",
	"year": 2025,
	"game_data": {"teleop": {"coral_l4": 4}}
}`

func TestObservations(t *testing.T) {
	Convey("Given the API with mock dependencies", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, 10)

		Convey("When a valid observation is posted", func() {
			w := do(mux, http.MethodPost, "/observations", validObservation)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var ack types.Ack
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, types.StatusAccepted)
				So(ack.Duplicate, ShouldBeFalse)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].Alliance, ShouldEqual, model.Red)
				So(deps.submitted[0].GameData.Teleop["coral_l4"], ShouldEqual, 4.0)
			})

			Convey("And the same id posted again is a duplicate", func() {
				again := do(mux, http.MethodPost, "/observations", validObservation)
				So(again.Code, ShouldEqual, http.StatusOK)
				var ack types.Ack
				So(json.Unmarshal(again.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(len(deps.submitted), ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/observations", "{")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Code, ShouldEqual, "bad_request")
		})

		Convey("When required fields are missing", func() {
			w := do(mux, http.MethodPost, "/observations", `{"id":"x","match_number":0}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the alliance is unknown", func() {
			body := strings.Replace(validObservation, `"red"`, `"green"`, 1)
			w := do(mux, http.MethodPost, "/observations", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("enqueue: %w", api.ErrBackpressure)
			w := do(mux, http.MethodPost, "/observations", validObservation)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w).Code, ShouldEqual, "backpressure")
		})

		Convey("When the ingestion queue reports it is full", func() {
			deps.submitErr = queue.ErrQueueFull
			w := do(mux, http.MethodPost, "/observations", validObservation)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the service is shutting down", func() {
			for _, stop := range []error{queue.ErrQueueClosed, fmt.Errorf("submit: %w", stoppedError{})} {
				deps.submitErr = stop
				w := do(mux, http.MethodPost, "/observations", validObservation)
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w).Code, ShouldEqual, "unavailable")
			}
		})

		Convey("When submission fails unexpectedly", func() {
			deps.submitErr = errors.New("boom")
			w := do(mux, http.MethodPost, "/observations", validObservation)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When the method is wrong", func() {
			w := do(mux, http.MethodGet, "/observations", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestResults(t *testing.T) {
	Convey("Given the API with mock dependencies", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, 10)

		Convey("When a result is posted", func() {
			w := do(mux, http.MethodPost, "/results",
				`{"match_number":3,"red":{"official_score":120,"foul_points":6},"blue":{"official_score":98}}`)

			Convey("Then it is stored without a body", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Body.Len(), ShouldEqual, 0)
				So(deps.results[3].Red.OfficialScore, ShouldEqual, 120)
				So(deps.results[3].Red.FoulPoints, ShouldEqual, 6)
			})
		})

		Convey("When the match number is missing", func() {
			w := do(mux, http.MethodPost, "/results", `{"red":{"official_score":1}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.results, ShouldBeEmpty)
		})

		Convey("When a score is negative", func() {
			w := do(mux, http.MethodPost, "/results", `{"match_number":1,"red":{"official_score":-1}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSolve(t *testing.T) {
	Convey("Given the API with a prepared report", t, func() {
		deps := newMockDependencies()
		deps.report = types.Report{Version: 9, Report: spr.Report{ConvergenceAchieved: true, Iterations: 12}}
		mux := newMux(deps, 10)

		Convey("When a solve is requested", func() {
			w := do(mux, http.MethodPost, "/solve", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.verbose, ShouldBeFalse)
			var rep types.Report
			So(json.Unmarshal(w.Body.Bytes(), &rep), ShouldBeNil)
			So(rep.Version, ShouldEqual, uint64(9))
			So(rep.Iterations, ShouldEqual, 12)
			So(rep.ConvergenceAchieved, ShouldBeTrue)
		})

		Convey("When verbose output is requested", func() {
			w := do(mux, http.MethodPost, "/solve?verbose=true", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.verbose, ShouldBeTrue)
		})

		Convey("When verbose is not a boolean", func() {
			w := do(mux, http.MethodPost, "/solve?verbose=maybe", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the solve fails", func() {
			deps.solveErr = spr.ErrInvalidOptions
			w := do(mux, http.MethodPost, "/solve", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w).Message, ShouldContainSubstring, "api.solve")
		})

		Convey("When the service is not running", func() {
			deps.solveErr = stoppedError{}
			w := do(mux, http.MethodPost, "/solve", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decodeError(w).Code, ShouldEqual, "unavailable")
		})

		Convey("When the report holds a value JSON cannot carry", func() {
			deps.report.OverallMeanError = math.Inf(1)
			w := do(mux, http.MethodPost, "/solve", "")

			Convey("Then the failure is reported instead of an empty success", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w).Code, ShouldEqual, "encode_error")
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a published leaderboard of three scouts", t, func() {
		deps := newMockDependencies()
		deps.entries = []types.Entry{
			{Rank: 1, ScoutID: "alice", Percentile: 100},
			{Rank: 2, ScoutID: "bob", Percentile: 67},
			{Rank: 3, ScoutID: "carol", Percentile: 33},
		}
		mux := newMux(deps, 2)

		Convey("When a page within the cap is requested", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var lb types.Leaderboard
			So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
			So(lb.Total, ShouldEqual, 3)
			So(len(lb.Entries), ShouldEqual, 1)
			So(lb.Entries[0].ScoutID, ShouldEqual, "alice")
		})

		Convey("When the limit exceeds the cap it is capped", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=50", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.limit, ShouldEqual, 2)
		})

		Convey("When no limit is given the cap applies", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.limit, ShouldEqual, 2)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-3", "abc"} {
				w := do(mux, http.MethodGet, "/leaderboard?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When no report has been published", func() {
			deps.lbErr = repository.ErrNoReport
			w := do(mux, http.MethodGet, "/leaderboard?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w).Code, ShouldEqual, "no_report")
		})

		Convey("When the service is stopping", func() {
			deps.lbErr = stoppedError{}
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given a published leaderboard", t, func() {
		deps := newMockDependencies()
		deps.entries = []types.Entry{{Rank: 1, ScoutID: "alice", ErrorValue: 0.4, MatchesScouted: 12}}
		mux := newMux(deps, 10)

		Convey("When a known scout is requested", func() {
			w := do(mux, http.MethodGet, "/rank/alice", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var e types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)
			So(e.MatchesScouted, ShouldEqual, 12)
		})

		Convey("When an unknown scout is requested", func() {
			w := do(mux, http.MethodGet, "/rank/zed", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When no report exists", func() {
			deps.lbErr = repository.ErrNoReport
			w := do(mux, http.MethodGet, "/rank/alice", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			So(do(mux, http.MethodGet, "/rank/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/rank/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestEPA(t *testing.T) {
	Convey("Given one team with observations", t, func() {
		deps := newMockDependencies()
		deps.teams[254] = types.TeamEPA{Team: 254, Observations: 4, EPA: epa.Breakdown{Teleop: 30, TotalEPA: 42}}
		mux := newMux(deps, 10)

		Convey("When the team is requested for a year", func() {
			w := do(mux, http.MethodGet, "/epa/254?year=2025", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.year, ShouldEqual, 2025)
			var out types.TeamEPA
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out.EPA.TotalEPA, ShouldEqual, 42)
		})

		Convey("When an unknown team is requested", func() {
			So(do(mux, http.MethodGet, "/epa/1", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the team is not a number", func() {
			So(do(mux, http.MethodGet, "/epa/abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/epa/254?year=x", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API", t, func() {
		mux := newMux(newMockDependencies(), 10)

		Convey("Then stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["observations"], ShouldEqual, 7.0)
		})

		Convey("Then healthz serves the metrics exposition", func() {
			do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "scoutspr_")
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("eof")

		Convey("Then kind and cause both match", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: eof")
		})

		Convey("Then NewKind carries no cause", func() {
			err := api.NewKind("api.op", api.ErrNotFound)
			So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: not found")
		})

		Convey("Then Wrap of nil is nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: eof")
		})
	})
}
