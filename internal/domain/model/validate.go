package model

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors.
var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrInvalidResult      = errors.New("invalid official result")
)

// Validate checks the fields the aggregator groups and keys on. Phase
// payloads are not inspected; malformed actions simply score zero.
func (o *Observation) Validate() error {
	switch {
	case o.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidObservation)
	case o.MatchNumber <= 0:
		return fmt.Errorf("%w: match_number must be positive", ErrInvalidObservation)
	case !o.Alliance.Valid():
		return fmt.Errorf("%w: alliance must be red or blue, got %q", ErrInvalidObservation, o.Alliance)
	case o.TeamNumber <= 0:
		return fmt.Errorf("%w: team_number must be positive", ErrInvalidObservation)
	case o.AlliancePosition < 0:
		return fmt.Errorf("%w: alliance_position must not be negative", ErrInvalidObservation)
	case o.Year < 0:
		return fmt.Errorf("%w: year must not be negative", ErrInvalidObservation)
	}
	return nil
}

// Validate rejects non-finite or negative scores.
func (r OfficialResult) Validate() error {
	for _, v := range []float64{r.Red.OfficialScore, r.Red.FoulPoints, r.Blue.OfficialScore, r.Blue.FoulPoints} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: scores must be finite and non-negative", ErrInvalidResult)
		}
	}
	return nil
}
