// Package epa converts scouted observations into Expected Points Added
// breakdowns using a scoring schema.
package epa

import (
	"math"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/scoring"
	"github.com/okian/scoutspr/pkg/metrics"
)

// Breakdown is the average points per match contributed in each phase.
type Breakdown struct {
	Auto      float64 `json:"auto"`
	Teleop    float64 `json:"teleop"`
	Endgame   float64 `json:"endgame"`
	Penalties float64 `json:"penalties"`
	TotalEPA  float64 `json:"total_epa"`
}

// Contribution is the offensive part of the total, i.e. what the robot adds
// to its own alliance's score. Penalties are scored for the opponent.
func (b Breakdown) Contribution() float64 {
	return b.TotalEPA - b.Penalties
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithCache attaches a result cache used by TeamEPA.
func WithCache(c *Cache) Option {
	return func(calc *Calculator) {
		calc.cache = c
	}
}

// Calculator computes EPA breakdowns. CalculateEPA is pure; only TeamEPA
// touches the optional cache.
type Calculator struct {
	schemas scoring.Resolver
	cache   *Cache
}

// NewCalculator creates a calculator that scores observations with the
// schema resolved for each observation's year.
func NewCalculator(schemas scoring.Resolver, opts ...Option) *Calculator {
	c := &Calculator{schemas: schemas}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the attached cache, or nil.
func (c *Calculator) Cache() *Cache {
	return c.cache
}

// Observation scores a single observation.
func (c *Calculator) Observation(o model.Observation) Breakdown { //nolint:gocritic // hugeParam: observations are passed by value across the domain
	s := c.schemas.ForYear(o.Year)
	b := Breakdown{
		Auto:      s.Points(model.PhaseAutonomous, o.GameData.Autonomous),
		Teleop:    s.Points(model.PhaseTeleop, o.GameData.Teleop),
		Endgame:   s.Points(model.PhaseEndgame, o.GameData.Endgame),
		Penalties: s.Points(model.PhaseFouls, o.GameData.Fouls),
	}
	return b.withTotal()
}

// withTotal sets TotalEPA from the phases. A breakdown whose total leaves
// the float range is unusable and collapses to zero, like any other
// malformed record.
func (b Breakdown) withTotal() Breakdown {
	b.TotalEPA = b.Auto + b.Teleop + b.Endgame + b.Penalties
	if !isFinite(b.TotalEPA) || !isFinite(b.TotalEPA-b.Penalties) {
		return Breakdown{}
	}
	return b
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// CalculateEPA averages the per-phase points of observations. An empty
// slice yields a zero breakdown.
func (c *Calculator) CalculateEPA(observations []model.Observation) Breakdown {
	if len(observations) == 0 {
		return Breakdown{}
	}

	// Divide before summing so large but finite records cannot overflow
	// the running total.
	n := float64(len(observations))
	var avg Breakdown
	for i := range observations {
		b := c.Observation(observations[i])
		avg.Auto += b.Auto / n
		avg.Teleop += b.Teleop / n
		avg.Endgame += b.Endgame / n
		avg.Penalties += b.Penalties / n
	}
	return avg.withTotal()
}

// TeamEPA computes the breakdown of one team in one year from the matching
// observations, serving repeated requests over the same observation set
// from the cache when one is attached. A zero year matches every year.
func (c *Calculator) TeamEPA(team, year int, observations []model.Observation) Breakdown {
	mine := make([]model.Observation, 0, len(observations))
	ids := make([]string, 0, len(observations))
	for i := range observations {
		o := observations[i]
		if o.TeamNumber != team || (year != 0 && o.Year != year) {
			continue
		}
		mine = append(mine, o)
		ids = append(ids, o.ID)
	}

	if c.cache == nil {
		return c.CalculateEPA(mine)
	}

	key := Key(team, year, ids)
	if b, ok := c.cache.Get(key); ok {
		metrics.RecordEPACacheHit()
		return b
	}
	metrics.RecordEPACacheMiss()

	b := c.CalculateEPA(mine)
	c.cache.Put(key, b)
	return b
}
