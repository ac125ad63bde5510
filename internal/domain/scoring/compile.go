package scoring

import (
	"fmt"
	"strings"

	"github.com/okian/scoutspr/internal/domain/model"
)

// Document keys that carry metadata rather than phases.
const (
	keyName   = "name"
	keyYear   = "year"
	keyPoints = "points"
	keyValues = "values"
)

// Compile turns a decoded schema document into a Schema. Each phase maps
// action keys to either a bare number (points per unit) or a table with
// "points" and/or "values":
//
//	endgame:
//	  cage:
//	    values: {none: 0, shallow: 6, deep: 12}
func Compile(doc map[string]any) (*Schema, error) {
	var (
		name   string
		year   int
		phases = make(map[model.Phase]PhaseRules)
	)

	for key, raw := range doc {
		switch strings.ToLower(key) {
		case keyName:
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: name must be a string", ErrInvalidSchema)
			}
			name = s
		case keyYear:
			y, ok := toFloat(raw)
			if !ok {
				return nil, fmt.Errorf("%w: year must be a number", ErrInvalidSchema)
			}
			year = int(y)
		default:
			phase := model.Phase(strings.ToLower(key))
			if !knownPhase(phase) {
				return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidSchema, key)
			}
			actions, ok := raw.(map[string]any)
			if !ok && raw != nil {
				return nil, fmt.Errorf("%w: phase %q must be a table", ErrInvalidSchema, key)
			}
			rules := make(PhaseRules, len(actions))
			for action, def := range actions {
				rule, err := compileRule(def)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", phase, action, err)
				}
				rules[action] = rule
			}
			phases[phase] = rules
		}
	}

	return New(name, year, phases)
}

func compileRule(def any) (Rule, error) {
	if n, ok := toFloat(def); ok {
		return Linear(n), nil
	}

	table, ok := def.(map[string]any)
	if !ok {
		return Rule{}, fmt.Errorf("%w: rule must be a number or a table", ErrInvalidSchema)
	}

	var (
		rule      Rule
		hasPoints bool
	)
	if raw, ok := table[keyPoints]; ok {
		n, ok := toFloat(raw)
		if !ok {
			return Rule{}, fmt.Errorf("%w: points must be a number", ErrInvalidSchema)
		}
		rule = Linear(n)
		hasPoints = true
	}
	if raw, ok := table[keyValues]; ok {
		values, ok := raw.(map[string]any)
		if !ok {
			return Rule{}, fmt.Errorf("%w: values must be a table", ErrInvalidSchema)
		}
		mapped := make(map[string]float64, len(values))
		for state, pts := range values {
			n, ok := toFloat(pts)
			if !ok {
				return Rule{}, fmt.Errorf("%w: value %q must map to a number", ErrInvalidSchema, state)
			}
			mapped[state] = n
		}
		enum := Enumerated(mapped)
		enum.PointsPerUnit = rule.PointsPerUnit
		rule = enum
	} else if !hasPoints {
		return Rule{}, fmt.Errorf("%w: rule needs points or values", ErrInvalidSchema)
	}

	return rule, nil
}
