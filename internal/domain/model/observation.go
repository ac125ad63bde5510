// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Alliance identifies one side of a match.
type Alliance string

// Alliance colors.
const (
	Red  Alliance = "red"
	Blue Alliance = "blue"
)

// Opponent returns the opposing alliance. Fouls committed by one alliance
// are credited to its opponent.
func (a Alliance) Opponent() Alliance {
	if a == Red {
		return Blue
	}
	return Red
}

// Valid reports whether a is a known alliance color.
func (a Alliance) Valid() bool {
	return a == Red || a == Blue
}

// ParseAlliance normalizes s into an Alliance.
func ParseAlliance(s string) (Alliance, error) {
	a := Alliance(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown alliance %q", s)
	}
	return a, nil
}

// UnmarshalText accepts any casing and surrounding space.
func (a *Alliance) UnmarshalText(b []byte) error {
	v, err := ParseAlliance(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Phase names a scored period of a match.
type Phase string

// Match phases as they appear in scoring schemas and observation payloads.
const (
	PhaseAutonomous Phase = "autonomous"
	PhaseTeleop     Phase = "teleop"
	PhaseEndgame    Phase = "endgame"
	PhaseFouls      Phase = "fouls"
)

// Phases lists every phase in scoring order.
var Phases = []Phase{PhaseAutonomous, PhaseTeleop, PhaseEndgame, PhaseFouls} //nolint:gochecknoglobals // fixed enumeration

// PhaseData is the raw action payload a scout recorded for one phase.
// Values are numbers, booleans or strings; anything else scores zero.
type PhaseData map[string]any

// GameData groups the per-phase payloads of an observation.
type GameData struct {
	Autonomous PhaseData `json:"autonomous,omitempty"`
	Teleop     PhaseData `json:"teleop,omitempty"`
	Endgame    PhaseData `json:"endgame,omitempty"`
	Fouls      PhaseData `json:"fouls,omitempty"`
}

// Phase returns the payload recorded for p, or nil.
func (g GameData) Phase(p Phase) PhaseData {
	switch p {
	case PhaseAutonomous:
		return g.Autonomous
	case PhaseTeleop:
		return g.Teleop
	case PhaseEndgame:
		return g.Endgame
	case PhaseFouls:
		return g.Fouls
	default:
		return nil
	}
}

// Observation is one scout's record of one robot in one match.
type Observation struct {
	ID               string   `json:"id"`
	MatchNumber      int      `json:"match_number"`
	Alliance         Alliance `json:"alliance"`
	AlliancePosition int      `json:"alliance_position"`
	TeamNumber       int      `json:"team_number"`
	ScouterID        string   `json:"scouter_id"`
	Year             int      `json:"year"`
	GameData         GameData `json:"game_data"`
}

// AllianceScore is the official outcome for one alliance. FoulPoints are
// the penalty points this alliance committed, which the opponent received.
type AllianceScore struct {
	OfficialScore float64 `json:"official_score"`
	FoulPoints    float64 `json:"foul_points"`
}

// OfficialResult is the ground truth for one match.
type OfficialResult struct {
	Red  AllianceScore `json:"red"`
	Blue AllianceScore `json:"blue"`
}

// For returns the score recorded for alliance a.
func (r OfficialResult) For(a Alliance) AllianceScore {
	if a == Blue {
		return r.Blue
	}
	return r.Red
}

// Adjusted returns the official score of a with the opponent's foul points
// removed. Foul points are awarded to the alliance that did not commit them,
// so they never appear in a scouted offensive total.
func (r OfficialResult) Adjusted(a Alliance) float64 {
	return r.For(a).OfficialScore - r.For(a.Opponent()).FoulPoints
}

// OfficialResults maps match number to official result. A missing match
// means there is no ground truth for it yet.
type OfficialResults map[int]OfficialResult
