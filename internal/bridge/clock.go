package bridge

import "sync/atomic"

// Clock hands out request IDs.
//
// IDs are strictly increasing and never zero; zero is reserved for responses
// to requests the service could not decode.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a clock whose first ID is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next request ID.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the last ID handed out without advancing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
