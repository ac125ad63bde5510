// Package repository holds observations, official results and the latest
// published rating report.
package repository

import (
	"context"
	"time"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/internal/domain/spr"
)

// Snapshot is an immutable published report.
type Snapshot struct {
	Report spr.Report
	// Version is the data version the report was computed from.
	Version    uint64
	ComputedAt time.Time

	rankByScout map[string]int
}

// Top returns a copy of up to n leading ratings.
func (s *Snapshot) Top(n int) []ranking.ScoutRating {
	n = max(0, min(n, len(s.Report.Scouters)))
	out := make([]ranking.ScoutRating, n)
	copy(out, s.Report.Scouters[:n])
	return out
}

// Rating returns the rating of scoutID, if present.
func (s *Snapshot) Rating(scoutID string) (ranking.ScoutRating, bool) {
	i, ok := s.rankByScout[scoutID]
	if !ok {
		return ranking.ScoutRating{}, false
	}
	return s.Report.Scouters[i], true
}

// Counts summarizes what the store holds.
type Counts struct {
	Observations int    `json:"observations"`
	Results      int    `json:"results"`
	Scouts       int    `json:"scouts"`
	Teams        int    `json:"teams"`
	Version      uint64 `json:"version"`
	// ReportVersion is zero until a report is published.
	ReportVersion uint64 `json:"report_version"`
}

// Store provides read/write access to rating inputs and outputs.
type Store interface {
	// AddObservation stores o. It returns false without error when an
	// observation with the same id is already stored.
	AddObservation(ctx context.Context, o model.Observation) (bool, error)
	// HasObservation reports whether an observation id is stored.
	HasObservation(ctx context.Context, id string) bool
	// PutResult stores or replaces the official result of a match.
	PutResult(ctx context.Context, match int, r model.OfficialResult) error

	// Observations returns every stored observation in arrival order.
	Observations(ctx context.Context) []model.Observation
	// TeamObservations returns a team's observations; year 0 matches all.
	TeamObservations(ctx context.Context, team, year int) []model.Observation
	// Results returns a copy of every stored official result.
	Results(ctx context.Context) model.OfficialResults
	// Version increases on every accepted write.
	Version(ctx context.Context) uint64

	// PublishReport replaces the current report snapshot.
	PublishReport(ctx context.Context, rep spr.Report, version uint64) *Snapshot
	// Report returns the current snapshot or ErrNoReport.
	Report(ctx context.Context) (*Snapshot, error)
	// Rank returns one scout's rating from the current report.
	Rank(ctx context.Context, scoutID string) (ranking.ScoutRating, error)
	// TopN returns up to n ratings from the current report.
	TopN(ctx context.Context, n int) ([]ranking.ScoutRating, error)

	Count(ctx context.Context) Counts
}
