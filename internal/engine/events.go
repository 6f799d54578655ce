package engine

import "sync"

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventProgress EventKind = iota
	EventThreat
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventThreat:
		return "threat"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single message on the scan side channel. Only the fields that
// belong to Kind are set.
type Event struct {
	Kind EventKind

	// EventProgress
	Completed int
	Total     int

	// EventThreat
	Path    string
	Reasons []string

	// EventComplete
	FilesScanned  int
	FindingsCount int
	Cancelled     bool

	// EventError
	Message string
}

// Percent returns progress in the range 0-100. An empty scan counts as done.
func (e Event) Percent() float64 {
	if e.Total == 0 {
		return 100
	}
	return float64(e.Completed) / float64(e.Total) * 100
}

// eventQueue is an unbounded FIFO between the scan goroutine and a consumer.
// push never blocks; the pump goroutine forwards events to out in order and
// closes it after close() once the backlog is drained.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go q.pump()
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			q.out <- e
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
