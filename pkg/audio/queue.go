package audio

import (
	"context"
	"sync"
)

// DefaultQueueCapacity is the number of cues held while one is playing
const DefaultQueueCapacity = 4

// Queue is a fixed-capacity ring of pending cues. When full, Push evicts
// the oldest queued cue so the newest request is always admitted.
//
// A popped cue stays in flight until Done is called, so Idle never
// reports true between dequeue and the end of playback.
type Queue struct {
	mu       sync.Mutex
	buf      []Event
	head     int
	size     int
	inFlight bool
	ready    chan struct{}
}

// NewQueue creates a queue holding at most capacity cues. Capacities
// outside [1, DefaultQueueCapacity] fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 || capacity > DefaultQueueCapacity {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		buf:   make([]Event, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push adds ev without blocking. It reports the evicted cue, if any.
func (q *Queue) Push(ev Event) (dropped Event, evicted bool) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		dropped = q.buf[q.head]
		evicted = true
		q.head = (q.head + 1) % len(q.buf)
		q.size--
	}
	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
	q.mu.Unlock()

	q.signal()
	return dropped, evicted
}

// Pop blocks until a cue is available or ctx is done. The returned cue is
// marked in flight.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			ev := q.buf[q.head]
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.inFlight = true
			more := q.size > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Done clears the in-flight marker set by Pop
func (q *Queue) Done() {
	q.mu.Lock()
	q.inFlight = false
	q.mu.Unlock()
}

// Idle reports whether nothing is queued or in flight
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.inFlight && q.size == 0
}

// Len returns the number of queued cues, excluding the one in flight
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Snapshot returns the queued cues oldest first
func (q *Queue) Snapshot() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, q.size)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
