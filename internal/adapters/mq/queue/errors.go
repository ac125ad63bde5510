package queue

import "errors"

var (
	// ErrQueueFull reports backpressure to producers.
	ErrQueueFull = errors.New("observation queue is full")
	// ErrQueueClosed is returned once the service has begun shutting down.
	ErrQueueClosed = errors.New("observation queue is closed")
)
