package transport

import "sync"

// frameQueue is a thread-safe unbounded FIFO of encoded frames.
//
// Posting never blocks, which gives the channel its fire-and-forget shape.
// The signal channel lets readers wait with a select alongside ctx.Done().
type frameQueue struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	signal chan struct{} // buffered, size 1
}

func newFrameQueue() *frameQueue {
	return &frameQueue{
		frames: make([][]byte, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a frame. Returns false if the queue is closed.
func (q *frameQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.frames = append(q.frames, frame)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front frame without blocking.
func (q *frameQueue) TryDequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}

	f := q.frames[0]
	q.frames[0] = nil

	if len(q.frames) == 1 {
		q.frames = q.frames[:0]
	} else {
		q.frames = q.frames[1:]
	}

	return f, true
}

// Wait returns a channel that fires when frames may be available.
// It is closed when the queue is closed.
func (q *frameQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued frames.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close stops further enqueues and wakes all waiters.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
