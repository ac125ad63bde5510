// Package worker drains the observation queue, scores each observation and
// stores it.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/pkg/logger"
	"github.com/okian/scoutspr/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Ingester stores an observation and reports whether it was new.
type Ingester interface {
	AddObservation(ctx context.Context, o model.Observation) (bool, error)
}

// Evaluator scores an observation against its year's schema.
type Evaluator interface {
	Observation(o model.Observation) epa.Breakdown
}

// Queue defines how workers receive observations.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Observation
}

// Worker processes observations until its queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	ingester  Ingester
	name      string
	processed func()

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, evaluator Evaluator, ingester Ingester, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		evaluator: evaluator,
		ingester:  ingester,
		name:      "worker",
		processed: func() {},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case o, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, o); err != nil {
				w.logger.Error(ctx, "error processing observation", logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, o model.Observation) error { //nolint:gocritic // hugeParam: observations are passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	scoreStart := time.Now()
	b := w.evaluator.Observation(o)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)

	stored, err := w.ingester.AddObservation(ctx, o)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ingest_error")
		metrics.RecordErrorByType("ingest_error", "high")
		return fmt.Errorf("store observation %s: %w", o.ID, err)
	}
	w.processed()

	if !stored {
		w.logger.Debug(ctx, "duplicate observation ignored", logger.String("observation_id", o.ID))
		return nil
	}
	w.logger.Debug(ctx, "observation stored",
		logger.String("observation_id", o.ID),
		logger.String("scouter_id", o.ScouterID),
		logger.Int("team", o.TeamNumber),
		logger.Float64("contribution", b.Contribution()),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}
	updater  chan struct{}

	started           atomic.Bool
	processedCount    atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers; a non-positive count uses
// one worker per CPU.
func NewPool(workerCount int, queue Queue, evaluator Evaluator, ingester Ingester) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		shutdown:          make(chan struct{}),
		updater:           make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, evaluator, ingester,
			WithName("worker-"+strconv.Itoa(i)),
			withProcessedHook(p.recordProcessed),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	metrics.UpdateWorkerIdleCount(0)

	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	defer close(p.updater)
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		perWorker := float64(p.processedCount.Swap(0)) / elapsed / float64(len(p.workers))
		metrics.UpdateWorkerMessagesPerSecond(perWorker)
	}
	p.lastProcessedTime = now
}

func (p *Pool) recordProcessed() {
	p.processedCount.Add(1)
}

// Shutdown closes the queue, lets workers drain what is already queued and
// then stops them. Workers still running when ctx expires are stopped
// without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			timedOut++
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	<-p.updater

	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(len(p.workers))
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
