package frames

import (
	"sync"
	"time"
)

// Frame is one opaque image payload received from the camera.
type Frame struct {
	Payload    []byte
	ReceivedAt time.Time
	Sequence   uint64
}

// Stats summarizes queue activity since construction.
type Stats struct {
	Len      int
	Capacity int
	Pushed   uint64
	Dropped  uint64
}

// Queue is a bounded FIFO of frames. A push on a full queue evicts the oldest
// frame. Push and DrainAll are atomic with respect to each other.
type Queue struct {
	mu       sync.Mutex
	buf      []Frame
	head     int
	size     int
	nextSeq  uint64
	pushed   uint64
	dropped  uint64
	onEvict  func(Frame)
	capacity int
}

// NewQueue returns an empty queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{buf: make([]Frame, capacity), capacity: capacity}
}

// OnEvict registers a callback invoked (under the queue lock) for every frame
// dropped by overflow. It must not call back into the queue.
func (q *Queue) OnEvict(fn func(Frame)) {
	q.mu.Lock()
	q.onEvict = fn
	q.mu.Unlock()
}

// Push appends payload to the tail and returns the stored frame.
func (q *Queue) Push(payload []byte, receivedAt time.Time) Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == q.capacity {
		evicted := q.buf[q.head]
		q.buf[q.head] = Frame{}
		q.head = (q.head + 1) % q.capacity
		q.size--
		q.dropped++
		if q.onEvict != nil {
			q.onEvict(evicted)
		}
	}

	frame := Frame{Payload: payload, ReceivedAt: receivedAt, Sequence: q.nextSeq}
	q.nextSeq++
	q.buf[(q.head+q.size)%q.capacity] = frame
	q.size++
	q.pushed++
	return frame
}

// DrainAll removes and returns every queued frame in arrival order.
func (q *Queue) DrainAll() []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}
	out := make([]Frame, q.size)
	for i := range out {
		idx := (q.head + i) % q.capacity
		out[i] = q.buf[idx]
		q.buf[idx] = Frame{}
	}
	q.head = 0
	q.size = 0
	return out
}

// Len reports the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity reports the maximum number of frames the queue retains.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Len: q.size, Capacity: q.capacity, Pushed: q.pushed, Dropped: q.dropped}
}
