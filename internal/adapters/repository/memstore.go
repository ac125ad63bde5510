package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/pkg/metrics"
)

const defaultInitialCapacity = 1024

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. Writes take a mutex; report reads go
// through an atomically swapped snapshot and never wait on a solve.
type MemoryStore struct {
	mu              sync.RWMutex
	observations    []model.Observation
	byID            map[string]int
	byTeam          map[int][]int
	scouts          map[string]struct{}
	results         model.OfficialResults
	initialCapacity int
	now             func() time.Time

	version  atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		initialCapacity: defaultInitialCapacity,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observations = make([]model.Observation, 0, s.initialCapacity)
	s.byID = make(map[string]int, s.initialCapacity)
	s.byTeam = make(map[int][]int)
	s.scouts = make(map[string]struct{})
	s.results = make(model.OfficialResults)
	return s
}

// AddObservation implements Store.AddObservation.
func (s *MemoryStore) AddObservation(ctx context.Context, o model.Observation) (bool, error) { //nolint:gocritic // hugeParam: observations are values
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := o.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_observation")
		return false, err
	}

	s.mu.Lock()
	if _, dup := s.byID[o.ID]; dup {
		s.mu.Unlock()
		metrics.RecordObservationDuplicate()
		return false, nil
	}
	idx := len(s.observations)
	s.observations = append(s.observations, o)
	s.byID[o.ID] = idx
	s.byTeam[o.TeamNumber] = append(s.byTeam[o.TeamNumber], idx)
	if o.ScouterID != "" {
		s.scouts[o.ScouterID] = struct{}{}
	}
	total := len(s.observations)
	s.version.Add(1)
	s.mu.Unlock()

	metrics.RecordObservationIngested()
	metrics.UpdateObservationsTotal(total)
	return true, nil
}

// HasObservation implements Store.HasObservation.
func (s *MemoryStore) HasObservation(ctx context.Context, id string) bool {
	s.mu.RLock()
	_, ok := s.byID[id]
	s.mu.RUnlock()
	return ok
}

// PutResult implements Store.PutResult.
func (s *MemoryStore) PutResult(ctx context.Context, match int, r model.OfficialResult) error {
	if match <= 0 {
		return model.ErrInvalidResult
	}
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.results[match] = r
	total := len(s.results)
	s.version.Add(1)
	s.mu.Unlock()

	metrics.RecordResultStored()
	metrics.UpdateResultsTotal(total)
	return nil
}

// Observations implements Store.Observations.
func (s *MemoryStore) Observations(ctx context.Context) []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

// TeamObservations implements Store.TeamObservations.
func (s *MemoryStore) TeamObservations(ctx context.Context, team, year int) []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byTeam[team]
	out := make([]model.Observation, 0, len(idx))
	for _, i := range idx {
		if year == 0 || s.observations[i].Year == year {
			out = append(out, s.observations[i])
		}
	}
	return out
}

// Results implements Store.Results.
func (s *MemoryStore) Results(ctx context.Context) model.OfficialResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.OfficialResults, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Version implements Store.Version.
func (s *MemoryStore) Version(ctx context.Context) uint64 {
	return s.version.Load()
}

// PublishReport implements Store.PublishReport.
func (s *MemoryStore) PublishReport(ctx context.Context, rep spr.Report, version uint64) *Snapshot { //nolint:gocritic // hugeParam: reports are published by value
	rankByScout := make(map[string]int, len(rep.Scouters))
	for i, r := range rep.Scouters {
		rankByScout[r.ScoutID] = i
	}
	snap := &Snapshot{
		Report:      rep,
		Version:     version,
		ComputedAt:  s.now(),
		rankByScout: rankByScout,
	}
	s.snapshot.Store(snap)
	metrics.RecordReportPublished()
	return snap
}

// Report implements Store.Report.
func (s *MemoryStore) Report(ctx context.Context) (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoReport
	}
	return snap, nil
}

// Rank implements Store.Rank.
func (s *MemoryStore) Rank(ctx context.Context, scoutID string) (ranking.ScoutRating, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	snap := s.snapshot.Load()
	if snap == nil {
		return ranking.ScoutRating{}, ErrNoReport
	}
	r, ok := snap.Rating(scoutID)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return ranking.ScoutRating{}, ErrNotFound
	}
	return r, nil
}

// TopN implements Store.TopN.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]ranking.ScoutRating, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoReport
	}
	return snap.Top(n), nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) Counts {
	s.mu.RLock()
	c := Counts{
		Observations: len(s.observations),
		Results:      len(s.results),
		Scouts:       len(s.scouts),
		Teams:        len(s.byTeam),
		Version:      s.version.Load(),
	}
	s.mu.RUnlock()
	if snap := s.snapshot.Load(); snap != nil {
		c.ReportVersion = snap.Version
	}
	return c
}
