package eventloop

import (
	"sync"

	"github.com/relab/bft"
)

// queue is a FIFO of events with a soft capacity.
//
// When the queue is at capacity, a push evicts the oldest event that may be lost.
// Epoch changes are never evicted; if only epoch changes are queued, the buffer grows.
type queue struct {
	mut      sync.Mutex
	buf      []bft.Event // ring buffer holding size events starting at start
	start    int
	size     int
	capacity int

	readyChan chan struct{}
}

func newQueue(capacity uint) queue {
	return queue{
		buf:       make([]bft.Event, capacity),
		capacity:  int(capacity),
		readyChan: make(chan struct{}),
	}
}

// evictable reports whether the event may be dropped when the queue is full.
// An epoch manager that misses an epoch change would never leave its epoch.
func evictable(event bft.Event) bool {
	_, ok := event.(bft.EpochChange)
	return !ok
}

// push adds an event to the tail of the queue. It returns the event evicted to make room, if any.
func (q *queue) push(event bft.Event) (evicted bft.Event) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.capacity == 0 {
		panic("cannot push to a queue with capacity 0")
	}

	if q.size >= q.capacity {
		evicted = q.evictLocked()
	}
	if q.size == len(q.buf) {
		q.growLocked()
	}
	q.buf[q.index(q.size)] = event
	q.size++

	select {
	case q.readyChan <- struct{}{}:
	default:
	}
	return evicted
}

func (q *queue) pop() (event bft.Event, ok bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.size == 0 {
		return nil, false
	}
	event = q.buf[q.start]
	q.buf[q.start] = nil
	q.start = q.index(1)
	q.size--
	return event, true
}

func (q *queue) len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return q.size
}

func (q *queue) ready() <-chan struct{} {
	return q.readyChan
}

// index maps the i'th queued position to its slot in buf.
func (q *queue) index(i int) int {
	return (q.start + i) % len(q.buf)
}

// evictLocked removes the oldest evictable event, keeping the order of the rest.
func (q *queue) evictLocked() bft.Event {
	for i := 0; i < q.size; i++ {
		event := q.buf[q.index(i)]
		if !evictable(event) {
			continue
		}
		for j := i; j > 0; j-- {
			q.buf[q.index(j)] = q.buf[q.index(j-1)]
		}
		q.buf[q.start] = nil
		q.start = q.index(1)
		q.size--
		return event
	}
	return nil
}

func (q *queue) growLocked() {
	buf := make([]bft.Event, 2*len(q.buf))
	for i := 0; i < q.size; i++ {
		buf[i] = q.buf[q.index(i)]
	}
	q.buf = buf
	q.start = 0
}
