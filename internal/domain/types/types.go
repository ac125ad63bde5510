// Package types contains the request and response shapes shared by the HTTP
// API and its clients.
package types

import (
	"time"

	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/internal/domain/spr"
)

// Entry is one leaderboard row.
type Entry = ranking.ScoutRating

// Ack acknowledges a submitted observation.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Ack statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// ResultRequest submits the official result of one match.
type ResultRequest struct {
	MatchNumber int                 `json:"match_number"`
	Red         model.AllianceScore `json:"red"`
	Blue        model.AllianceScore `json:"blue"`
}

// Result converts the request into the domain value.
func (r ResultRequest) Result() model.OfficialResult {
	return model.OfficialResult{Red: r.Red, Blue: r.Blue}
}

// Report is a published rating report.
type Report struct {
	ComputedAt time.Time `json:"computed_at"`
	Version    uint64    `json:"version"`
	spr.Report
}

// Leaderboard is the head of the latest report.
type Leaderboard struct {
	ComputedAt          time.Time `json:"computed_at"`
	Version             uint64    `json:"version"`
	ConvergenceAchieved bool      `json:"convergence_achieved"`
	OverallMeanError    float64   `json:"overall_mean_error"`
	Message             string    `json:"message,omitempty"`
	// Total is the number of rated scouts, which may exceed len(Entries).
	Total   int     `json:"total"`
	Entries []Entry `json:"entries"`
}

// TeamEPA is a team's averaged EPA breakdown.
type TeamEPA struct {
	Team         int           `json:"team"`
	Year         int           `json:"year,omitempty"`
	Observations int           `json:"observations"`
	EPA          epa.Breakdown `json:"epa"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
