package bus

import (
	"context"
	"sync/atomic"

	"main/pkg/exception"
)

// Queue is a bounded, non-blocking in-memory event queue. Producers hand
// events to a single consuming Run loop, which keeps all state mutation on
// one goroutine.
type Queue[T any] struct {
	ch     chan T
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue[T]) TryPublish(e T) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrOrderQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrOrderQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue[T]) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
