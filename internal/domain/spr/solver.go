// Package spr estimates each scout's systematic recording error from
// alliance-level error equations.
//
// Every usable equation asserts that the error values of its scouts sum to
// the alliance error. The system is solved by Gauss-Seidel relaxation:
// scouts are visited in ascending id order and each new estimate is
// committed in place, so later scouts in the same pass see it.
package spr

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/scoutspr/internal/domain/alliance"
)

// Solver defaults.
const (
	DefaultMaxIterations        = 200
	DefaultConvergenceThreshold = 1e-4
)

// Options controls equation construction and the solve.
type Options struct {
	ExpectedAllianceSize    int
	SkipIncompleteAlliances bool
	MaxIterations           int
	ConvergenceThreshold    float64
	// Verbose attaches every constructed equation to the report.
	Verbose bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ExpectedAllianceSize:    alliance.DefaultAllianceSize,
		SkipIncompleteAlliances: true,
		MaxIterations:           DefaultMaxIterations,
		ConvergenceThreshold:    DefaultConvergenceThreshold,
	}
}

// Validate reports structurally invalid options.
func (o Options) Validate() error {
	switch {
	case o.ExpectedAllianceSize <= 0:
		return fmt.Errorf("%w: expected alliance size %d", ErrInvalidOptions, o.ExpectedAllianceSize)
	case o.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidOptions, o.MaxIterations)
	case !(o.ConvergenceThreshold > 0):
		return fmt.Errorf("%w: convergence threshold %v", ErrInvalidOptions, o.ConvergenceThreshold)
	}
	return nil
}

func (o Options) allianceOptions() alliance.Options {
	return alliance.Options{
		ExpectedAllianceSize:    o.ExpectedAllianceSize,
		SkipIncompleteAlliances: o.SkipIncompleteAlliances,
	}
}

// Solution is the raw output of Solve.
type Solution struct {
	// Values maps scout id to solved error value.
	Values     map[string]float64
	Converged  bool
	Iterations int
	// Delta is the largest change in the final pass.
	Delta float64
	// Components is the number of connected groups in the scout
	// participation graph.
	Components int
	Message    string
}

// Solve estimates per-scout error values from the usable equations in eqs.
// Skipped equations are ignored.
func Solve(eqs []alliance.Equation, opts Options) (Solution, error) {
	if err := opts.Validate(); err != nil {
		return Solution{}, err
	}

	usable := alliance.Usable(eqs)
	if len(usable) == 0 {
		return Solution{
			Values:  map[string]float64{},
			Message: "no usable alliance equations: official results are missing or alliances are incomplete",
		}, nil
	}

	scouts, index := scoutIndex(usable)
	rows := make([][]int, len(usable))
	member := make([][]int, len(scouts))
	for i := range usable {
		rows[i] = make([]int, len(usable[i].ScoutIDs))
		for j, id := range usable[i].ScoutIDs {
			s := index[id]
			rows[i][j] = s
			member[s] = append(member[s], i)
		}
	}
	components := countComponents(len(scouts), rows)

	if len(scouts) == 1 {
		n := float64(len(usable))
		var mean float64
		for i := range usable {
			mean += usable[i].Error / n
		}
		return Solution{
			Values:     map[string]float64{scouts[0]: mean},
			Converged:  true,
			Components: components,
		}, nil
	}

	x := make([]float64, len(scouts))
	sol := Solution{Components: components}
	diverged := false
passes:
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		var delta float64
		for s := range scouts {
			var acc float64
			for _, e := range member[s] {
				r := usable[e].Error
				for _, p := range rows[e] {
					if p != s {
						r -= x[p]
					}
				}
				acc += r
			}
			next := acc / float64(len(member[s]))
			d := math.Abs(next - x[s])
			if math.IsNaN(d) || math.IsInf(d, 0) {
				// Keep the last finite estimates rather than publish NaN.
				sol.Iterations = iter
				diverged = true
				break passes
			}
			delta = max(delta, d)
			x[s] = next
		}
		sol.Iterations = iter
		sol.Delta = delta
		if delta < opts.ConvergenceThreshold {
			sol.Converged = true
			break
		}
	}

	sol.Values = make(map[string]float64, len(scouts))
	for s, id := range scouts {
		sol.Values[id] = x[s]
	}
	switch {
	case diverged:
		sol.Message = divergedMessage(sol.Iterations)
	case !sol.Converged:
		sol.Message = diagnose(len(usable), len(scouts), components, sol.Delta, opts.MaxIterations)
	case components > 1:
		sol.Message = disconnectedWarning(components)
	}
	return sol, nil
}

// scoutIndex returns the distinct scouts of eqs in ascending order and
// their positions.
func scoutIndex(eqs []alliance.Equation) ([]string, map[string]int) {
	seen := make(map[string]struct{})
	for i := range eqs {
		for _, id := range eqs[i].ScoutIDs {
			seen[id] = struct{}{}
		}
	}
	scouts := make([]string, 0, len(seen))
	for id := range seen {
		scouts = append(scouts, id)
	}
	sort.Strings(scouts)
	index := make(map[string]int, len(scouts))
	for i, id := range scouts {
		index[id] = i
	}
	return scouts, index
}
