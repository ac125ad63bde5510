// Package ranking turns solved per-scout error values into an ordered
// leaderboard with percentiles and summary statistics.
package ranking

import (
	"math"
	"sort"

	"github.com/okian/scoutspr/internal/domain/alliance"
)

const percentScale = 100

// ScoutRating is one scout's row in the accuracy leaderboard.
type ScoutRating struct {
	Rank    int    `json:"rank"`
	ScoutID string `json:"scout_id"`
	// ErrorValue is the solved per-match error rate; closer to zero is better.
	ErrorValue float64 `json:"error_value"`
	// MatchesScouted counts usable alliance-matches the scout took part in.
	MatchesScouted int `json:"matches_scouted"`
	// TotalAbsoluteError accumulates each equation's absolute error split
	// evenly among its scouts, so it grows with volume.
	TotalAbsoluteError float64 `json:"total_absolute_error"`
	Percentile         int     `json:"percentile"`
	// MultiRobotMatches counts alliance-matches where the scout recorded
	// more than one robot.
	MultiRobotMatches int `json:"multi_robot_matches"`
}

// Summary describes the distribution of solved error values.
type Summary struct {
	ScoutCount          int     `json:"scout_count"`
	MeanErrorValue      float64 `json:"mean_error_value"`
	MeanAbsErrorValue   float64 `json:"mean_abs_error_value"`
	MedianAbsErrorValue float64 `json:"median_abs_error_value"`
	StdDevErrorValue    float64 `json:"stddev_error_value"`
	MostAccurate        string  `json:"most_accurate,omitempty"`
	LeastAccurate       string  `json:"least_accurate,omitempty"`
}

// Rate builds the ordered leaderboard for every scout in values, using the
// usable equations for volume statistics. Scouts are ordered by absolute
// error value, then by total absolute error, then by id.
func Rate(values map[string]float64, usable []alliance.Equation) []ScoutRating {
	byScout := make(map[string]*ScoutRating, len(values))
	for id, v := range values {
		byScout[id] = &ScoutRating{ScoutID: id, ErrorValue: v}
	}

	for i := range usable {
		eq := &usable[i]
		if len(eq.ScoutIDs) == 0 {
			continue
		}
		share := math.Abs(eq.Error) / float64(len(eq.ScoutIDs))
		for _, id := range eq.ScoutIDs {
			r, ok := byScout[id]
			if !ok {
				continue
			}
			r.MatchesScouted++
			r.TotalAbsoluteError = clamp(r.TotalAbsoluteError + share)
			if eq.ScoutRobots[id] > 1 {
				r.MultiRobotMatches++
			}
		}
	}

	out := make([]ScoutRating, 0, len(byScout))
	for _, r := range byScout {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].ErrorValue), math.Abs(out[j].ErrorValue)
		if ai != aj {
			return ai < aj
		}
		if out[i].TotalAbsoluteError != out[j].TotalAbsoluteError {
			return out[i].TotalAbsoluteError < out[j].TotalAbsoluteError
		}
		return out[i].ScoutID < out[j].ScoutID
	})

	n := len(out)
	for i := range out {
		out[i].Rank = i + 1
		out[i].Percentile = Percentile(i+1, n)
	}
	return out
}

// Percentile returns round((1 - (rank-1)/n) * 100) for a 1-indexed rank.
func Percentile(rank, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(rank-1)/float64(n)) * percentScale))
}

// Summarize computes distribution statistics over an ordered leaderboard.
func Summarize(ratings []ScoutRating) Summary {
	s := Summary{ScoutCount: len(ratings)}
	if len(ratings) == 0 {
		return s
	}

	// Means divide first so extreme but finite values cannot overflow.
	n := float64(len(ratings))
	abs := make([]float64, len(ratings))
	for i, r := range ratings {
		abs[i] = math.Abs(r.ErrorValue)
		s.MeanErrorValue += r.ErrorValue / n
		s.MeanAbsErrorValue += abs[i] / n
	}

	var variance float64
	for _, r := range ratings {
		d := r.ErrorValue - s.MeanErrorValue
		variance += d * d / n
	}
	s.StdDevErrorValue = clamp(math.Sqrt(variance))

	sort.Float64s(abs)
	mid := len(abs) / 2
	if len(abs)%2 == 0 {
		s.MedianAbsErrorValue = abs[mid-1]/2 + abs[mid]/2
	} else {
		s.MedianAbsErrorValue = abs[mid]
	}

	s.MostAccurate = ratings[0].ScoutID
	s.LeastAccurate = ratings[len(ratings)-1].ScoutID
	return s
}

// clamp caps an overflowed accumulator at the largest float so reports stay
// JSON encodable.
func clamp(x float64) float64 {
	return min(x, math.MaxFloat64)
}
