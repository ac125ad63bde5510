package spr

import (
	"math"
	"time"

	"github.com/okian/scoutspr/internal/domain/alliance"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/pkg/metrics"
)

// Report is the result of one rating run.
type Report struct {
	ConvergenceAchieved bool `json:"convergence_achieved"`
	// OverallMeanError is the mean absolute error over usable equations.
	OverallMeanError float64               `json:"overall_mean_error"`
	Message          string                `json:"message,omitempty"`
	Iterations       int                   `json:"iterations"`
	Scouters         []ranking.ScoutRating `json:"scouters"`
	Summary          ranking.Summary       `json:"summary"`
	VerboseData      *VerboseData          `json:"verbose_data,omitempty"`
}

// VerboseData exposes every constructed equation for auditing.
type VerboseData struct {
	Equations        []alliance.Equation         `json:"equations"`
	UsedEquations    int                         `json:"used_equations"`
	SkippedEquations int                         `json:"skipped_equations"`
	TotalEquations   int                         `json:"total_equations"`
	SkipCounts       map[alliance.SkipReason]int `json:"skip_counts"`
	Components       int                         `json:"components"`
	FinalDelta       float64                     `json:"final_delta"`
}

// Engine chains equation construction, the solve and ranking.
type Engine struct {
	eval alliance.Evaluator
	opts Options
}

// NewEngine validates opts and returns an engine scoring observations
// with eval.
func NewEngine(eval alliance.Evaluator, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{eval: eval, opts: opts}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// WithVerbose returns a copy of the engine with verbose output toggled.
func (e *Engine) WithVerbose(verbose bool) *Engine {
	cp := *e
	cp.opts.Verbose = verbose
	return &cp
}

// Run rates every scout found in observations against results.
func (e *Engine) Run(observations []model.Observation, results model.OfficialResults) (Report, error) {
	start := time.Now()

	eqs, err := alliance.BuildEquations(observations, results, e.eval, e.opts.allianceOptions())
	if err != nil {
		return Report{}, err
	}
	usable := alliance.Usable(eqs)

	sol, err := Solve(eqs, e.opts)
	if err != nil {
		return Report{}, err
	}

	ratings := ranking.Rate(sol.Values, usable)
	rep := Report{
		ConvergenceAchieved: sol.Converged,
		OverallMeanError:    meanAbsError(usable),
		Message:             sol.Message,
		Iterations:          sol.Iterations,
		Scouters:            ratings,
		Summary:             ranking.Summarize(ratings),
	}

	skipCounts := make(map[alliance.SkipReason]int)
	for i := range eqs {
		if eqs[i].Skipped {
			skipCounts[eqs[i].SkipReason]++
		}
	}
	if e.opts.Verbose {
		rep.VerboseData = &VerboseData{
			Equations:        eqs,
			UsedEquations:    len(usable),
			SkippedEquations: len(eqs) - len(usable),
			TotalEquations:   len(eqs),
			SkipCounts:       skipCounts,
			Components:       sol.Components,
			FinalDelta:       sol.Delta,
		}
	}

	metrics.RecordSolve(sol.Converged, sol.Iterations, sol.Delta, float64(time.Since(start).Milliseconds()))
	metrics.UpdateUsableEquations(len(usable))
	for reason, n := range skipCounts {
		metrics.RecordSkippedEquations(string(reason), n)
	}
	metrics.UpdateScoutsRated(len(ratings))
	metrics.UpdateOverallMeanError(rep.OverallMeanError)

	return rep, nil
}

func meanAbsError(eqs []alliance.Equation) float64 {
	if len(eqs) == 0 {
		return 0
	}
	n := float64(len(eqs))
	var mean float64
	for i := range eqs {
		mean += math.Abs(eqs[i].Error) / n
	}
	return min(mean, math.MaxFloat64)
}
