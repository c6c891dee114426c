// Package dispatch runs posted functions one at a time, in order, on a dedicated goroutine.
//
// Backends report to the player through a Queue so that a reader goroutine never blocks
// on the player while the player is waiting for that same reader.
package dispatch

import "sync"

// Queue is an unbounded FIFO of functions executed on its own goroutine.
type Queue struct {
	mu     sync.Mutex
	items  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// New starts a Queue.
func New() *Queue {
	q := &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Post schedules fn. It never blocks. Functions posted after Close are dropped.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every function posted before it has run.
// It must not be called from a posted function.
func (q *Queue) Flush() {
	ran := make(chan struct{})
	q.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-q.done:
	}
}

// Close runs what is already queued and stops the goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the queue stopped.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) > 0 {
			fn := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()

			fn()

			q.mu.Lock()
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return
		}
		<-q.wake
	}
}
