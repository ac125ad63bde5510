// Package queue buffers observations between the HTTP surface and the
// ingestion workers.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10_000
)

// Item is the payload type flowing through the queue.
type Item = model.Observation

// Queue hands accepted observations to the ingestion workers.
type Queue interface {
	// Enqueue buffers it without blocking. It fails with ErrQueueFull,
	// ErrQueueClosed or the context error.
	Enqueue(ctx context.Context, it Item) error

	// Dequeue streams buffered items until the queue is closed and
	// drained or ctx ends.
	Dequeue(ctx context.Context) <-chan Item

	// Len reports how many items are buffered.
	Len(ctx context.Context) int

	// Close refuses further items. Buffered items still drain.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue buffers an observation without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error { //nolint:gocritic // hugeParam: items are passed by value for channel semantics
	start := time.Now()
	err := q.offer(ctx, it)
	metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	switch {
	case err == nil:
		metrics.RecordQueueEnqueue()
		q.observeSize()
	case errors.Is(err, ErrQueueFull):
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
	case errors.Is(err, ErrQueueClosed):
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
	}
	return err
}

func (q *InMemoryQueue) offer(ctx context.Context, it Item) error { //nolint:gocritic // hugeParam
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.items <- it:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue returns a channel that receives items as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for it := range q.items {
			select {
			case out <- it:
				metrics.RecordQueueDequeue()
				q.observeSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued items and refreshes the size
// gauges.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observeSize()
}

func (q *InMemoryQueue) observeSize() int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
