package cdp

import (
	"context"
	"sync"
)

// eventQueue is an unbounded FIFO of events with a single producer (the
// receive loop) and any number of consumers. Each event is handed to exactly
// one consumer, oldest first.
type eventQueue struct {
	mu       sync.Mutex
	items    []*Event
	closeErr error

	// ready holds a token while items may be available.
	ready chan struct{}
	// done is closed by close.
	done chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends evt. Pushes after close are dropped.
func (q *eventQueue) push(evt *Event) {
	q.mu.Lock()
	if q.closeErr != nil {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, evt)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// close marks the queue finished. Queued events are still handed out; once
// drained, pop returns err.
func (q *eventQueue) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return
	}
	q.closeErr = err
	close(q.done)
}

// pop removes and returns the oldest event, blocking until one is available,
// the queue is closed and drained, or ctx ends.
func (q *eventQueue) pop(ctx context.Context) (*Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Pass the token on to the next waiting consumer.
				q.signal()
			}
			return evt, nil
		}
		if q.closeErr != nil {
			err := q.closeErr
			q.mu.Unlock()
			return nil, err
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// len returns the number of queued events.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
