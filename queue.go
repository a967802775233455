package tabsh

import "sync"

// request pairs a command with the channel its reply is delivered on.
type request struct {
	cmd   Command
	reply chan reply
}

type reply struct {
	out Output
	err error
}

// requestQueue is an unbounded FIFO with many producers and one consumer.
type requestQueue struct {
	mu     sync.Mutex
	items  []*request
	closed bool
	// notify holds at most one pending wake-up for the consumer.
	notify chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{notify: make(chan struct{}, 1)}
}

// push appends req. It fails once the queue is closed.
func (q *requestQueue) push(req *request) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrShellClosed
	}
	q.items = append(q.items, req)
	q.mu.Unlock()

	q.wake()
	return nil
}

// pop blocks until a request is available. It returns false when the
// queue is closed and drained.
func (q *requestQueue) pop() (*request, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

func (q *requestQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *requestQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
