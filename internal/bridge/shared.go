package bridge

import (
	"context"
	"sync"
)

// Launcher creates an uninitialized connection.
type Launcher func(cfg Config) *Conn

// Shared owns the single execution context of a process.
//
// The first Get launches and initializes the connection; every later Get
// returns the identical *Conn without re-sending initialize. Construct one
// Shared at startup and pass it to whatever needs a connection.
type Shared struct {
	cfg    Config
	launch Launcher

	mu   sync.Mutex
	conn *Conn
}

// NewShared creates a Shared that launches an in-process service.
func NewShared(cfg Config, opts ...Option) *Shared {
	return &Shared{
		cfg: cfg,
		launch: func(cfg Config) *Conn {
			return Launch(cfg, opts...)
		},
	}
}

// NewSharedWith creates a Shared that uses launch to create its connection.
func NewSharedWith(cfg Config, launch Launcher) *Shared {
	return &Shared{cfg: cfg, launch: launch}
}

// Get returns the shared connection, launching and initializing it on first use.
// If initialization fails the connection is discarded and the next Get retries.
func (s *Shared) Get(ctx context.Context) (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	c := s.launch(s.cfg)
	if _, err := c.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	s.conn = c
	return c, nil
}

// Close closes the shared connection if one was launched.
func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
