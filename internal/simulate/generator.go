// Package simulate generates synthetic competitions with known scout biases
// and drives them through the rating engine or a running service.
package simulate

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/scoring"
)

const (
	defaultYear         = 2025
	defaultTeams        = 40
	defaultAllianceSize = 3
	firstTeamNumber     = 1000
)

// Competition is a generated event: every robot observation plus the
// official result of every match.
type Competition struct {
	Observations []model.Observation
	Results      model.OfficialResults
	Scouts       []Scout
}

// Generator builds competitions where each alliance is scouted by a
// rotating group of scouts and official scores are the unbiased totals.
type Generator struct {
	scouts       []Scout
	teams        int
	year         int
	allianceSize int
	rng          *rand.Rand
	newID        func() string
	schemas      scoring.Resolver
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes group rotation and team assignment reproducible.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic data
	}
}

// WithScouts replaces the canonical scouts.
func WithScouts(scouts []Scout) GeneratorOption {
	return func(g *Generator) {
		g.scouts = scouts
	}
}

// WithTeams sets the size of the team pool.
func WithTeams(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.teams = n
		}
	}
}

// WithYear sets the game year of generated observations.
func WithYear(year int) GeneratorOption {
	return func(g *Generator) {
		if year > 0 {
			g.year = year
		}
	}
}

// WithIDFunc replaces the random observation id source.
func WithIDFunc(fn func() string) GeneratorOption {
	return func(g *Generator) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// WithSchemas sets the scoring schemas used for official scores.
func WithSchemas(r scoring.Resolver) GeneratorOption {
	return func(g *Generator) {
		if r != nil {
			g.schemas = r
		}
	}
}

// NewGenerator returns a generator over the canonical scouts.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		scouts:       DefaultScouts(),
		teams:        defaultTeams,
		year:         defaultYear,
		allianceSize: defaultAllianceSize,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(1)) //nolint:gosec // synthetic data
	}
	if g.schemas == nil {
		g.schemas = scoring.Default()
	}
	return g
}

// Generate builds a competition of the given number of matches. Red takes
// the next scout group and blue the one after, so every group scouts the
// same number of alliances when matches is a multiple of half the groups.
func (g *Generator) Generate(matches int) (Competition, error) {
	if len(g.scouts) < g.allianceSize {
		return Competition{}, ErrTooFewScouts
	}
	if matches < 1 || g.teams < 2*g.allianceSize {
		return Competition{}, ErrInvalidConfig
	}

	groups := combinations(g.scouts, g.allianceSize)
	g.rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

	calc := epa.NewCalculator(g.schemas)
	comp := Competition{
		Observations: make([]model.Observation, 0, matches*2*g.allianceSize),
		Results:      make(model.OfficialResults, matches),
		Scouts:       g.scouts,
	}

	for m := 1; m <= matches; m++ {
		teams := g.rng.Perm(g.teams)
		var res model.OfficialResult
		for k, a := range []model.Alliance{model.Red, model.Blue} {
			group := groups[(2*(m-1)+k)%len(groups)]
			var official float64
			for pos, scout := range group {
				team := firstTeamNumber + teams[k*g.allianceSize+pos]
				o := g.observation(m, a, pos+1, team, scout.ID, scout.Bias)
				comp.Observations = append(comp.Observations, o)
				official += calc.Observation(g.observation(m, a, pos+1, team, scout.ID, 1)).Contribution()
			}
			if a == model.Red {
				res.Red.OfficialScore = official
			} else {
				res.Blue.OfficialScore = official
			}
		}
		comp.Results[m] = res
	}
	return comp, nil
}

// observation records the baseline robot profile with every counted action
// scaled by bias. Autonomous leave and the endgame cage are not counts and
// are recorded exactly.
func (g *Generator) observation(match int, a model.Alliance, pos, team int, scout string, bias float64) model.Observation {
	return model.Observation{
		ID:               g.newID(),
		MatchNumber:      match,
		Alliance:         a,
		AlliancePosition: pos,
		TeamNumber:       team,
		ScouterID:        scout,
		Year:             g.year,
		GameData: model.GameData{
			Autonomous: model.PhaseData{"leave": true, "coral_l4": 1 * bias},
			Teleop: model.PhaseData{
				"coral_l2":  2 * bias,
				"coral_l3":  3 * bias,
				"coral_l4":  4 * bias,
				"processor": 1 * bias,
			},
			Endgame: model.PhaseData{"cage": "deep"},
		},
	}
}

// combinations lists every k-scout group in id order.
func combinations(scouts []Scout, k int) [][]Scout {
	sorted := make([]Scout, len(scouts))
	copy(sorted, scouts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out [][]Scout
	group := make([]Scout, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(group) == k {
			out = append(out, append([]Scout(nil), group...))
			return
		}
		for i := start; i < len(sorted); i++ {
			group = append(group, sorted[i])
			walk(i + 1)
			group = group[:len(group)-1]
		}
	}
	walk(0)
	return out
}

// SequentialIDs returns an id source yielding prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
