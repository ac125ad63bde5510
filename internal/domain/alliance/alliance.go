// Package alliance turns per-robot observations into alliance-level error
// equations by comparing scouted totals with official scores.
package alliance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
)

// DefaultAllianceSize is the number of robots on an alliance.
const DefaultAllianceSize = 3

// ErrInvalidOptions reports structurally invalid aggregation options.
var ErrInvalidOptions = errors.New("invalid alliance options")

// SkipReason explains why an equation is excluded from the solve.
type SkipReason string

// Skip reasons.
const (
	SkipNone                 SkipReason = ""
	SkipMissingOfficial      SkipReason = "missing_official_result"
	SkipIncompleteAlliance   SkipReason = "incomplete_alliance"
	SkipDuplicateObservation SkipReason = "duplicate_robot_observation"
	SkipNoScouts             SkipReason = "no_scouts"
	SkipNonFiniteError       SkipReason = "non_finite_error"
)

// Evaluator scores a single observation.
type Evaluator interface {
	Observation(o model.Observation) epa.Breakdown
}

// Options controls equation construction.
type Options struct {
	// ExpectedAllianceSize is the robot count of a complete alliance.
	ExpectedAllianceSize int
	// SkipIncompleteAlliances excludes alliances whose distinct robot count
	// differs from ExpectedAllianceSize.
	SkipIncompleteAlliances bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{ExpectedAllianceSize: DefaultAllianceSize, SkipIncompleteAlliances: true}
}

// Equation is one alliance-match constraint: the scouts in ScoutIDs
// together account for Error.
type Equation struct {
	MatchNumber      int            `json:"match_number"`
	Alliance         model.Alliance `json:"alliance"`
	ScoutedTotal     float64        `json:"scouted_total"`
	AdjustedOfficial float64        `json:"adjusted_official"`
	Error            float64        `json:"error"`
	// ScoutIDs are the distinct scouts who recorded this alliance, sorted.
	ScoutIDs []string `json:"scout_ids"`
	// ScoutRobots counts robots recorded per scout; a value above one means
	// the scout covered several robots in this alliance-match.
	ScoutRobots      map[string]int `json:"scout_robots"`
	RobotCount       int            `json:"robot_count"`
	ExpectedRobots   int            `json:"expected_robots"`
	ObservationCount int            `json:"observation_count"`
	Skipped          bool           `json:"skipped"`
	SkipReason       SkipReason     `json:"skip_reason,omitempty"`
}

// Usable reports whether the equation may be fed to the solver.
func (e *Equation) Usable() bool {
	return !e.Skipped
}

func (e *Equation) skip(r SkipReason) {
	e.Skipped = true
	e.SkipReason = r
}

// groupKey identifies one alliance in one match.
type groupKey struct {
	match    int
	alliance model.Alliance
}

// BuildEquations groups observations by match and alliance and builds one
// equation per group, ordered by match then red before blue. Groups that
// cannot be used are returned too, marked skipped with a reason.
func BuildEquations(observations []model.Observation, results model.OfficialResults, eval Evaluator, opts Options) ([]Equation, error) {
	if opts.ExpectedAllianceSize <= 0 {
		return nil, fmt.Errorf("%w: expected alliance size must be positive, got %d", ErrInvalidOptions, opts.ExpectedAllianceSize)
	}

	groups := make(map[groupKey][]int)
	for i := range observations {
		k := groupKey{match: observations[i].MatchNumber, alliance: observations[i].Alliance}
		groups[k] = append(groups[k], i)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].match != keys[j].match {
			return keys[i].match < keys[j].match
		}
		if oi, oj := allianceOrder(keys[i].alliance), allianceOrder(keys[j].alliance); oi != oj {
			return oi < oj
		}
		return keys[i].alliance < keys[j].alliance
	})

	equations := make([]Equation, 0, len(keys))
	for _, k := range keys {
		equations = append(equations, buildOne(k, groups[k], observations, results, eval, opts))
	}
	return equations, nil
}

// allianceOrder puts red before blue and anything unexpected last.
func allianceOrder(a model.Alliance) int {
	switch a {
	case model.Red:
		return 0
	case model.Blue:
		return 1
	default:
		return 2
	}
}

func buildOne(k groupKey, idx []int, observations []model.Observation, results model.OfficialResults, eval Evaluator, opts Options) Equation {
	eq := Equation{
		MatchNumber:      k.match,
		Alliance:         k.alliance,
		ExpectedRobots:   opts.ExpectedAllianceSize,
		ObservationCount: len(idx),
		ScoutRobots:      make(map[string]int),
	}

	robots := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		o := observations[i]
		robots[o.TeamNumber] = struct{}{}
		if o.ScouterID != "" {
			eq.ScoutRobots[o.ScouterID]++
		}
		eq.ScoutedTotal += eval.Observation(o).Contribution()
	}
	eq.RobotCount = len(robots)

	eq.ScoutIDs = make([]string, 0, len(eq.ScoutRobots))
	for id := range eq.ScoutRobots {
		eq.ScoutIDs = append(eq.ScoutIDs, id)
	}
	sort.Strings(eq.ScoutIDs)

	res, ok := results[k.match]
	if !ok {
		eq.skip(SkipMissingOfficial)
		return eq
	}
	eq.AdjustedOfficial = res.Adjusted(k.alliance)
	eq.Error = eq.ScoutedTotal - eq.AdjustedOfficial

	switch {
	case !finite(eq.ScoutedTotal) || !finite(eq.Error):
		// Zeroed so verbose reports stay encodable; the reason says why.
		eq.ScoutedTotal, eq.Error = 0, 0
		eq.skip(SkipNonFiniteError)
	case len(eq.ScoutIDs) == 0:
		eq.skip(SkipNoScouts)
	case opts.SkipIncompleteAlliances && eq.RobotCount != opts.ExpectedAllianceSize:
		eq.skip(SkipIncompleteAlliance)
	case opts.SkipIncompleteAlliances && eq.ObservationCount > eq.RobotCount:
		eq.skip(SkipDuplicateObservation)
	}
	return eq
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Usable filters equations down to those the solver may use.
func Usable(equations []Equation) []Equation {
	out := make([]Equation, 0, len(equations))
	for i := range equations {
		if equations[i].Usable() {
			out = append(out, equations[i])
		}
	}
	return out
}
