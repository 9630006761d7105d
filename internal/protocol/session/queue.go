package session

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("session: queue closed")

// Queue is an unbounded FIFO handoff from one producer goroutine to the
// dispatch loop. Push never blocks. After Close, buffered items still drain
// in order before TryPop reports the close cause.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	cause  error
	ready  chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It reports false once the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close marks producer exhaustion. The first cause wins; a nil cause is
// reported as ErrQueueClosed.
func (q *Queue[T]) Close(cause error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if cause == nil {
		cause = ErrQueueClosed
	}
	q.cause = cause
	q.mu.Unlock()
	q.signal()
}

// TryPop never blocks. ok is false when nothing is buffered; err is non-nil
// only when the queue is both closed and drained.
func (q *Queue[T]) TryPop() (v T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return v, false, q.cause
		}
		return v, false, nil
	}
	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true, nil
}

// Ready is signalled after Push or Close; it may fire spuriously.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
