// Package scoring defines the declarative scoring schema that maps recorded
// game actions to point values for each match phase.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/scoutspr/internal/domain/model"
)

// RuleKind tags how a rule converts a recorded value into points.
type RuleKind uint8

// Rule kinds.
const (
	// KindLinear multiplies numeric counts by PointsPerUnit and awards
	// PointsPerUnit once for a true boolean.
	KindLinear RuleKind = iota + 1
	// KindEnumerated maps a recorded state string to points, falling back to
	// PointsPerUnit for states it does not list.
	KindEnumerated
)

func (k RuleKind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindEnumerated:
		return "enumerated"
	default:
		return "unknown"
	}
}

// noneValue is the conventional "did nothing" state for enumerated actions.
const noneValue = "none"

// Rule is a compiled scoring rule for one action key.
type Rule struct {
	Kind          RuleKind
	PointsPerUnit float64
	ValueToPoints map[string]float64
}

// Linear returns a rule awarding points per unit.
func Linear(points float64) Rule {
	return Rule{Kind: KindLinear, PointsPerUnit: points}
}

// Enumerated returns a rule that maps recorded states to points.
func Enumerated(values map[string]float64) Rule {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Rule{Kind: KindEnumerated, ValueToPoints: cp}
}

// Points converts one recorded value into points. Values of unsupported
// types score zero.
func (r Rule) Points(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return r.PointsPerUnit
		}
		return 0
	case string:
		if strings.TrimSpace(x) == "" || strings.EqualFold(strings.TrimSpace(x), noneValue) {
			return 0
		}
		if r.Kind == KindEnumerated {
			if p, ok := r.ValueToPoints[x]; ok {
				return p
			}
		}
		return r.PointsPerUnit
	default:
		n, ok := toFloat(v)
		if !ok {
			return 0
		}
		return n * r.PointsPerUnit
	}
}

// PhaseRules holds the rules of one phase keyed by lower-cased action key.
type PhaseRules map[string]Rule

// Lookup finds the rule for key, ignoring case.
func (pr PhaseRules) Lookup(key string) (Rule, bool) {
	r, ok := pr[strings.ToLower(key)]
	return r, ok
}

// ComputePoints scores one phase payload. Keys without a rule contribute
// nothing, and a non-finite contribution is dropped so one malformed value
// cannot poison an average.
func ComputePoints(data model.PhaseData, rules PhaseRules) float64 {
	if len(data) == 0 || len(rules) == 0 {
		return 0
	}

	// Sum in key order so repeated runs produce identical floats.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0.0
	for _, k := range keys {
		rule, ok := rules.Lookup(k)
		if !ok {
			continue
		}
		total += finite(rule.Points(data[k]))
	}
	return finite(total)
}

// Schema is a compiled scoring configuration for one game.
type Schema struct {
	Name   string
	Year   int
	phases map[model.Phase]PhaseRules
}

// New builds a schema from already compiled phase rules. Action keys are
// normalized to lower case.
func New(name string, year int, phases map[model.Phase]PhaseRules) (*Schema, error) {
	s := &Schema{Name: name, Year: year, phases: make(map[model.Phase]PhaseRules, len(phases))}
	for phase, rules := range phases {
		if !knownPhase(phase) {
			return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidSchema, phase)
		}
		norm := make(PhaseRules, len(rules))
		for key, rule := range rules {
			lk := strings.ToLower(strings.TrimSpace(key))
			if lk == "" {
				return nil, fmt.Errorf("%w: empty action key in %s", ErrInvalidSchema, phase)
			}
			if _, dup := norm[lk]; dup {
				return nil, fmt.Errorf("%w: action %q declared twice in %s", ErrInvalidSchema, lk, phase)
			}
			norm[lk] = rule
		}
		s.phases[phase] = norm
	}
	return s, nil
}

// Rules returns the rules for phase p; nil when the schema does not score it.
func (s *Schema) Rules(p model.Phase) PhaseRules {
	if s == nil {
		return nil
	}
	return s.phases[p]
}

// Points scores a payload recorded during phase p.
func (s *Schema) Points(p model.Phase, data model.PhaseData) float64 {
	return ComputePoints(data, s.Rules(p))
}

// ForYear lets a single schema act as a Resolver for every year.
func (s *Schema) ForYear(int) *Schema { return s }

func knownPhase(p model.Phase) bool {
	for _, known := range model.Phases {
		if p == known {
			return true
		}
	}
	return false
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
