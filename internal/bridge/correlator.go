package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

// reply settles one pending request.
type reply struct {
	resp *protocol.Response
	err  error
}

// Correlator matches responses on a port to the requests that caused them.
//
// Thread-safety model:
//   - Send(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Correlator struct {
	port    transport.Port
	clock   *Clock
	metrics *Metrics

	mu      sync.Mutex
	pending map[uint64]chan reply
	broken  error
}

// NewCorrelator creates a Correlator over port. metrics may be nil.
func NewCorrelator(port transport.Port, metrics *Metrics) *Correlator {
	return &Correlator{
		port:    port,
		clock:   NewClock(),
		metrics: metrics,
		pending: make(map[uint64]chan reply),
	}
}

// Send posts a tagged request and waits for its response.
//
// Returns a *ChannelError if the channel fails before the response arrives,
// or ctx.Err() if ctx is done first. A response with Success=false is
// returned as a value, not as an error.
func (c *Correlator) Send(ctx context.Context, tag protocol.Tag, body any) (*protocol.Response, error) {
	id := c.clock.Next()

	msg, err := protocol.NewMessage(id, tag, body)
	if err != nil {
		return nil, err
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.broken != nil {
		err := c.broken
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	start := c.metrics.begin()

	if err := c.port.Post(frame); err != nil {
		c.forget(id)
		c.metrics.end(tag, start, OutcomeChannelError)
		return nil, &ChannelError{Err: err}
	}

	slog.Debug("request sent", "id", id, "tag", tag)

	select {
	case r := <-ch:
		outcome := OutcomeOK
		switch {
		case r.err != nil:
			outcome = OutcomeChannelError
		case !r.resp.Success:
			outcome = OutcomeServiceError
		}
		c.metrics.end(tag, start, outcome)
		return r.resp, r.err

	case <-ctx.Done():
		c.forget(id)
		c.metrics.end(tag, start, OutcomeCancelled)
		return nil, ctx.Err()
	}
}

// Pending returns the number of requests awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Err returns the channel failure that broke the correlator, if any.
func (c *Correlator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Run dispatches inbound responses until the channel fails, closes, or ctx is
// done. On return every pending request has been failed with a *ChannelError.
//
// Returns nil for an orderly shutdown (ctx done or channel closed) and the
// channel failure otherwise.
func (c *Correlator) Run(ctx context.Context) error {
	for {
		frame, err := c.port.Recv(ctx)
		if err != nil {
			c.failAll(err)
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			slog.Error("channel failed", "error", err)
			return err
		}
		c.dispatch(frame)
	}
}

// dispatch resolves the pending request named by one response frame.
// Frames that cannot be matched are logged and dropped.
func (c *Correlator) dispatch(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		slog.Warn("dropping undecodable frame", "error", err)
		return
	}
	if msg.Tag != protocol.TagResponse {
		slog.Warn("dropping unexpected message", "id", msg.ID, "tag", msg.Tag)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		slog.Warn("dropping response with no pending request", "id", msg.ID)
		return
	}

	var resp protocol.Response
	if err := msg.DecodeBody(&resp); err != nil {
		ch <- reply{err: fmt.Errorf("response %d: %w", msg.ID, err)}
		return
	}
	ch <- reply{resp: &resp}
}

// failAll breaks the correlator and fails every pending request.
func (c *Correlator) failAll(cause error) {
	ce := &ChannelError{Err: cause}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken == nil {
		c.broken = ce
	}
	for id, ch := range c.pending {
		ch <- reply{err: c.broken}
		delete(c.pending, id)
	}
}

func (c *Correlator) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}
