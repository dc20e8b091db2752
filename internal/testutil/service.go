// Package testutil provides a scriptable stand-in for the execution service.
package testutil

import (
	"context"
	"sync"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

// Handler decides the response to one request. Returning ok=false holds the
// request unanswered until Release or ReleaseReversed is called.
type Handler func(msg protocol.Message) (resp protocol.Response, ok bool)

// FakeService serves the protocol on a port with a scripted handler and
// records every request it receives.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeService struct {
	port    transport.Port
	handler Handler

	mu       sync.Mutex
	received []protocol.Message
	held     []protocol.Message
	replies  map[uint64]protocol.Response
	arrived  chan struct{}
}

// NewFakeService creates a service on port. A nil handler acknowledges
// everything with Success=true and no data.
func NewFakeService(port transport.Port, handler Handler) *FakeService {
	if handler == nil {
		handler = func(protocol.Message) (protocol.Response, bool) {
			return protocol.Response{Success: true}, true
		}
	}
	return &FakeService{
		port:    port,
		handler: handler,
		replies: make(map[uint64]protocol.Response),
		arrived: make(chan struct{}, 1024),
	}
}

// Rows builds a successful execute response carrying rows.
func Rows(rows ...map[string]any) protocol.Response {
	if rows == nil {
		rows = []map[string]any{}
	}
	resp, err := protocol.NewResponse(true, rows, "")
	if err != nil {
		panic(err)
	}
	return resp
}

// Ack builds a successful initialize response for name.
func Ack(name string) protocol.Response {
	resp, err := protocol.NewResponse(true, protocol.InitializeResult{Name: name}, "")
	if err != nil {
		panic(err)
	}
	return resp
}

// Run serves until ctx is done or the port fails.
func (f *FakeService) Run(ctx context.Context) error {
	for {
		frame, err := f.port.Recv(ctx)
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			return err
		}

		resp, ok := f.handler(msg)

		f.mu.Lock()
		f.received = append(f.received, msg)
		if !ok {
			f.held = append(f.held, msg)
		}
		f.mu.Unlock()
		f.arrived <- struct{}{}

		if ok {
			if err := f.reply(msg.ID, resp); err != nil {
				return err
			}
		}
	}
}

// Arrived returns a channel that receives once per request handled.
func (f *FakeService) Arrived() <-chan struct{} {
	return f.arrived
}

// SetReply records the response sent for a held request when released.
func (f *FakeService) SetReply(id uint64, resp protocol.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[id] = resp
}

// Release answers held requests in arrival order.
func (f *FakeService) Release() error {
	return f.release(false)
}

// ReleaseReversed answers held requests newest first.
func (f *FakeService) ReleaseReversed() error {
	return f.release(true)
}

func (f *FakeService) release(reverse bool) error {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.mu.Unlock()

	for i := range held {
		msg := held[i]
		if reverse {
			msg = held[len(held)-1-i]
		}
		f.mu.Lock()
		resp, ok := f.replies[msg.ID]
		f.mu.Unlock()
		if !ok {
			resp = protocol.Response{Success: true}
		}
		if err := f.reply(msg.ID, resp); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeService) reply(id uint64, resp protocol.Response) error {
	msg, err := protocol.NewMessage(id, protocol.TagResponse, resp)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return f.port.Post(frame)
}

// Received returns a copy of every request seen so far.
func (f *FakeService) Received() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.received))
	copy(out, f.received)
	return out
}

// Count returns how many requests with tag were received.
func (f *FakeService) Count(tag protocol.Tag) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.received {
		if m.Tag == tag {
			n++
		}
	}
	return n
}

// LastExecute decodes the body of the most recent execute request.
func (f *FakeService) LastExecute() (protocol.ExecuteRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.received) - 1; i >= 0; i-- {
		if f.received[i].Tag != protocol.TagExecute {
			continue
		}
		var req protocol.ExecuteRequest
		if err := f.received[i].DecodeBody(&req); err != nil {
			return req, false
		}
		return req, true
	}
	return protocol.ExecuteRequest{}, false
}
