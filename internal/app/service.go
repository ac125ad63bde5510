// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/scoutspr/internal/adapters/mq/queue"
	workerpool "github.com/okian/scoutspr/internal/adapters/mq/worker"
	"github.com/okian/scoutspr/internal/adapters/repository"
	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/scoring"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/internal/domain/types"
	"github.com/okian/scoutspr/pkg/logger"
	"github.com/okian/scoutspr/pkg/metrics"
)

const (
	defaultQueueSize = 10_000
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// Service implements the API dependencies for the scout rating system.
type Service struct {
	mu sync.RWMutex
	// solveMu serializes solves so reports are published in version order.
	solveMu sync.Mutex

	store    repository.Store
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool
	calc     *epa.Calculator
	cache    *epa.Cache
	engine   *spr.Engine
	schemas  scoring.Resolver
	inflight sync.Map

	workerCount       int
	queueSize         int
	solver            spr.Options
	schemaPath        string
	cacheSize         int
	cacheTTL          time.Duration
	recomputeInterval time.Duration

	started  bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	loopDone chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		solver:      spr.DefaultOptions(),
		cacheSize:   defaultCacheSize,
		cacheTTL:    defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components. Workers and the
// recompute loop outlive ctx and stop on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scout rating service...")

	if s.schemas == nil {
		reg, err := s.loadSchemas()
		if err != nil {
			return err
		}
		s.schemas = reg
	}

	var calcOpts []epa.Option
	if s.cacheSize > 0 {
		s.cache = epa.NewCache(epa.WithMaxEntries(s.cacheSize), epa.WithTTL(s.cacheTTL))
		calcOpts = append(calcOpts, epa.WithCache(s.cache))
	}
	s.calc = epa.NewCalculator(s.schemas, calcOpts...)

	engine, err := spr.NewEngine(s.calc, s.solver)
	if err != nil {
		return fmt.Errorf("configure solver: %w", err)
	}
	s.engine = engine

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.calc, &storeIngester{store: s.store, inflight: &s.inflight})
	s.pool.Start(runCtx)

	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	go s.recomputeLoop(runCtx)

	s.started = true
	s.logger.Info(ctx, "scout rating service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("epa_cache_size", s.cacheSize),
		logger.Duration("recompute_interval", s.recomputeInterval),
	)
	return nil
}

// loadSchemas builds the registry from the embedded schemas plus the
// optional schema file.
func (s *Service) loadSchemas() (*scoring.Registry, error) {
	defaults, err := scoring.Defaults()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if s.schemaPath == "" {
		return scoring.NewRegistry(defaults[0], defaults[1:]...), nil
	}
	custom, err := scoring.LoadFile(s.schemaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if custom.Year == 0 {
		return scoring.NewRegistry(custom, defaults...), nil
	}
	return scoring.NewRegistry(defaults[0], append(defaults[1:], custom)...), nil
}

// Stop drains queued observations and stops the workers and the recompute
// loop.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stopCh, loopDone, pool, cancel := s.stopCh, s.loopDone, s.pool, s.cancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping scout rating service...")
	close(stopCh)
	<-loopDone

	err := pool.Shutdown(ctx)
	cancel()
	s.logger.Info(ctx, "scout rating service stopped")
	return err
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SubmitObservation validates o and queues it for ingestion.
func (s *Service) SubmitObservation(ctx context.Context, o model.Observation) (bool, error) { //nolint:gocritic // hugeParam: observations are values
	if !s.running() {
		return false, ErrNotStarted
	}
	if err := o.Validate(); err != nil {
		return false, err
	}
	if s.store.HasObservation(ctx, o.ID) {
		metrics.RecordObservationDuplicate()
		return true, nil
	}
	if _, queued := s.inflight.LoadOrStore(o.ID, struct{}{}); queued {
		metrics.RecordObservationDuplicate()
		return true, nil
	}
	// A worker may have stored the id and released its marker between the
	// first lookup and the claim above.
	if s.store.HasObservation(ctx, o.ID) {
		s.inflight.Delete(o.ID)
		metrics.RecordObservationDuplicate()
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, o); err != nil {
		s.inflight.Delete(o.ID)
		if errors.Is(err, eventqueue.ErrQueueClosed) {
			return false, ErrNotStarted
		}
		return false, err
	}
	s.logger.Debug(ctx, "observation queued",
		logger.String("observation_id", o.ID),
		logger.Int("match", o.MatchNumber),
		logger.String("scouter_id", o.ScouterID),
	)
	return false, nil
}

// PutResult stores the official result of a match.
func (s *Service) PutResult(ctx context.Context, match int, r model.OfficialResult) error {
	if !s.running() {
		return ErrNotStarted
	}
	if err := s.store.PutResult(ctx, match, r); err != nil {
		return err
	}
	s.logger.Debug(ctx, "official result stored", logger.Int("match", match))
	return nil
}

// Solve rates every scout from the stored data and publishes the report.
// Verbose equation data is returned but not kept in the published snapshot.
func (s *Service) Solve(ctx context.Context, verbose bool) (types.Report, error) {
	if !s.running() {
		return types.Report{}, ErrNotStarted
	}
	s.solveMu.Lock()
	defer s.solveMu.Unlock()

	version := s.store.Version(ctx)
	observations := s.store.Observations(ctx)
	results := s.store.Results(ctx)

	rep, err := s.engine.WithVerbose(verbose).Run(observations, results)
	if err != nil {
		metrics.RecordErrorByComponent("service", "solve_error")
		return types.Report{}, fmt.Errorf("solve: %w", err)
	}

	published := rep
	published.VerboseData = nil
	snap := s.store.PublishReport(ctx, published, version)

	fields := []logger.Field{
		logger.Bool("converged", rep.ConvergenceAchieved),
		logger.Int("iterations", rep.Iterations),
		logger.Int("scouts", len(rep.Scouters)),
		logger.Int("observations", len(observations)),
		logger.Int("results", len(results)),
		logger.Float64("overall_mean_error", rep.OverallMeanError),
		logger.Any("version", version),
	}
	if rep.Message != "" {
		s.logger.Warn(ctx, "rating report published with warnings", append(fields, logger.String("message", rep.Message))...)
	} else {
		s.logger.Info(ctx, "rating report published", fields...)
	}

	return types.Report{ComputedAt: snap.ComputedAt, Version: snap.Version, Report: rep}, nil
}

// Leaderboard returns up to n ratings of the latest report.
func (s *Service) Leaderboard(ctx context.Context, n int) (types.Leaderboard, error) {
	if !s.running() {
		return types.Leaderboard{}, ErrNotStarted
	}
	if n < 1 {
		return types.Leaderboard{}, repository.ErrInvalidLimit
	}
	snap, err := s.store.Report(ctx)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.Leaderboard{
		ComputedAt:          snap.ComputedAt,
		Version:             snap.Version,
		ConvergenceAchieved: snap.Report.ConvergenceAchieved,
		OverallMeanError:    snap.Report.OverallMeanError,
		Message:             snap.Report.Message,
		Total:               len(snap.Report.Scouters),
		Entries:             snap.Top(n),
	}, nil
}

// TopN returns the top n ratings of the latest report.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.TopN(ctx, n)
}

// Rank returns one scout's rating from the latest report.
func (s *Service) Rank(ctx context.Context, scoutID string) (types.Entry, error) {
	if !s.running() {
		return types.Entry{}, ErrNotStarted
	}
	return s.store.Rank(ctx, scoutID)
}

// TeamEPA averages a team's stored observations; year 0 uses all seasons.
func (s *Service) TeamEPA(ctx context.Context, team, year int) (types.TeamEPA, error) {
	if !s.running() {
		return types.TeamEPA{}, ErrNotStarted
	}
	obs := s.store.TeamObservations(ctx, team, year)
	if len(obs) == 0 {
		return types.TeamEPA{}, fmt.Errorf("team %d: %w", team, repository.ErrNoTeamData)
	}
	b := s.calc.TeamEPA(team, year, obs)
	if s.cache != nil {
		metrics.UpdateEPACacheSize(s.cache.Len())
	}
	return types.TeamEPA{Team: team, Year: year, Observations: len(obs), EPA: b}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":      s.started,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	counts := s.store.Count(ctx)
	stats["queue_length"] = queueLen
	stats["observations"] = counts.Observations
	stats["results"] = counts.Results
	stats["scouts"] = counts.Scouts
	stats["teams"] = counts.Teams
	stats["version"] = counts.Version
	stats["report_version"] = counts.ReportVersion
	if s.cache != nil {
		stats["epa_cache_entries"] = s.cache.Len()
	}
	if snap, err := s.store.Report(ctx); err == nil {
		stats["convergence_achieved"] = snap.Report.ConvergenceAchieved
		stats["iterations"] = snap.Report.Iterations
		stats["rated_scouts"] = len(snap.Report.Scouters)
		stats["computed_at"] = snap.ComputedAt
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}

// recomputeLoop re-solves on every tick when the stored data moved past
// the published report, and expires stale EPA cache entries.
func (s *Service) recomputeLoop(ctx context.Context) {
	defer close(s.loopDone)
	if s.recomputeInterval <= 0 {
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		}
		return
	}

	ticker := time.NewTicker(s.recomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.recompute(ctx)
		}
	}
}

func (s *Service) recompute(ctx context.Context) {
	if s.cache != nil {
		if n := s.cache.Purge(); n > 0 {
			s.logger.Debug(ctx, "expired epa cache entries", logger.Int("count", n))
		}
		metrics.UpdateEPACacheSize(s.cache.Len())
	}

	version := s.store.Version(ctx)
	if version == 0 {
		return
	}
	snap, err := s.store.Report(ctx)
	switch {
	case err == nil && snap.Version >= version:
		return
	case err != nil && !errors.Is(err, repository.ErrNoReport):
		s.logger.Error(ctx, "read current report", logger.Error(err))
		return
	}
	if _, err := s.Solve(ctx, false); err != nil {
		s.logger.Error(ctx, "scheduled solve failed", logger.Error(err))
	}
}

// storeIngester adds observations to the store and releases their
// in-flight marker.
type storeIngester struct {
	store    repository.Store
	inflight *sync.Map
}

func (i *storeIngester) AddObservation(ctx context.Context, o model.Observation) (bool, error) { //nolint:gocritic // hugeParam: matches the worker Ingester contract
	defer i.inflight.Delete(o.ID)
	return i.store.AddObservation(ctx, o)
}
