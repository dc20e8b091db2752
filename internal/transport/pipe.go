// Package transport provides the asynchronous, bidirectional message channel
// between a controller and an isolated execution context.
//
// A channel carries opaque encoded frames in both directions. Posting never
// blocks. Either side may raise a channel-level error with Fail, which is
// independent of any particular request and is observed by both ends.
package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when posting to or receiving from a closed channel.
var ErrClosed = errors.New("transport: channel closed")

// Port is one end of a message channel.
type Port interface {
	// Post sends a frame to the other end without waiting for it to be read.
	Post(frame []byte) error
	// Recv blocks until a frame arrives, the channel fails, or ctx is done.
	Recv(ctx context.Context) ([]byte, error)
	// Fail raises a channel-level error event observed by both ends.
	Fail(err error)
	// Close shuts the channel down. Pending frames are discarded.
	Close() error
}

// link is the state shared by both ends of a pipe.
type link struct {
	mu     sync.Mutex
	err    error
	broken chan struct{}
}

func (l *link) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	l.err = err
	close(l.broken)
}

func (l *link) failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Endpoint is an in-process Port backed by two frame queues.
type Endpoint struct {
	in   *frameQueue
	out  *frameQueue
	link *link
}

// Pipe returns the two connected ends of a new channel.
// Frames posted on one end are received on the other in post order.
func Pipe() (*Endpoint, *Endpoint) {
	a, b := newFrameQueue(), newFrameQueue()
	l := &link{broken: make(chan struct{})}
	return &Endpoint{in: a, out: b, link: l}, &Endpoint{in: b, out: a, link: l}
}

// Post implements Port.
func (e *Endpoint) Post(frame []byte) error {
	if err := e.link.failure(); err != nil {
		return err
	}
	if !e.out.Enqueue(frame) {
		return ErrClosed
	}
	return nil
}

// Recv implements Port.
//
// Frames already queued when the channel fails are not delivered; the
// failure wins so that callers observe it promptly.
func (e *Endpoint) Recv(ctx context.Context) ([]byte, error) {
	for {
		if err := e.link.failure(); err != nil {
			return nil, err
		}
		if f, ok := e.in.TryDequeue(); ok {
			return f, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.link.broken:
		case <-e.in.Wait():
			if e.in.Len() == 0 && e.closed() {
				return nil, ErrClosed
			}
		}
	}
}

func (e *Endpoint) closed() bool {
	e.in.mu.Lock()
	defer e.in.mu.Unlock()
	return e.in.closed
}

// Fail implements Port. Only the first error is kept.
func (e *Endpoint) Fail(err error) {
	if err == nil {
		err = ErrClosed
	}
	e.link.fail(err)
}

// Close implements Port.
func (e *Endpoint) Close() error {
	e.in.Close()
	e.out.Close()
	e.link.fail(ErrClosed)
	return nil
}
