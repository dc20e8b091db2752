package bridge

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/engine"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/schema"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

// Config describes an execution context.
type Config struct {
	// Name is the storage identifier passed to the service.
	Name string
	// Debug enables verbose echoing of service-reported status.
	Debug bool
	// Driver selects the SQLite driver used by a launched service.
	Driver string
	// Schema is provisioned by a launched service on initialize.
	// Nil selects the built-in schema.
	Schema *schema.Schema
}

// Option configures a Conn.
type Option func(*connOptions)

type connOptions struct {
	metrics *Metrics
}

// WithMetrics instruments the connection's correlator.
func WithMetrics(m *Metrics) Option {
	return func(o *connOptions) {
		o.metrics = m
	}
}

// Conn is a handle on one execution context.
//
// All query builders constructed with the same Conn share its channel; they
// borrow it and never close it.
type Conn struct {
	cfg    Config
	port   transport.Port
	corr   *Correlator
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu          sync.Mutex
	initialized bool
	ack         protocol.InitializeResult

	closeOnce sync.Once
	closeErr  error
}

// Launch starts an in-process execution service on a fresh channel and
// returns a connection to it. The service is not initialized yet.
func Launch(cfg Config, opts ...Option) *Conn {
	sc := cfg.Schema
	if sc == nil {
		sc = schema.MustDefault()
	}
	ctrl, svc := transport.Pipe()
	eng := engine.New(engine.WithDriver(cfg.Driver), engine.WithSchema(sc))

	c := NewConn(ctrl, cfg, opts...)
	c.group.Go(func() error { return eng.Run(c.ctx, svc) })
	return c
}

// NewConn wraps a port connected to any service speaking the protocol and
// starts dispatching its responses.
func NewConn(port transport.Port, cfg Config, opts ...Option) *Conn {
	var o connOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		cfg:    cfg,
		port:   port,
		corr:   NewCorrelator(port, o.metrics),
		ctx:    ctx,
		cancel: cancel,
	}
	c.group.Go(func() error { return c.corr.Run(ctx) })
	return c
}

// Config returns the configuration the connection was created with.
func (c *Conn) Config() Config {
	return c.cfg
}

// Debug reports whether verbose diagnostics are enabled.
func (c *Conn) Debug() bool {
	return c.cfg.Debug
}

// Initialize sends the initialize command once and caches the acknowledgement.
// Later calls return the cached acknowledgement without sending anything.
// A refused initialize is not cached, so it may be retried.
func (c *Conn) Initialize(ctx context.Context) (protocol.InitializeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.ack, nil
	}

	resp, err := c.corr.Send(ctx, protocol.TagInitialize, protocol.InitializeRequest{
		Name:  c.cfg.Name,
		Debug: c.cfg.Debug,
	})
	if err != nil {
		return protocol.InitializeResult{}, err
	}
	c.echo(resp)
	if !resp.Success {
		return protocol.InitializeResult{}, &InitError{Message: resp.Error}
	}

	ack, err := resp.Init()
	if err != nil {
		return protocol.InitializeResult{}, err
	}

	c.ack = ack
	c.initialized = true
	return ack, nil
}

// Initialized reports whether Initialize has succeeded.
func (c *Conn) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Execute sends one SQL statement with optional bound parameters.
// Statement failures come back as a Response with Success=false.
func (c *Conn) Execute(ctx context.Context, sql string, params ...any) (*protocol.Response, error) {
	req := protocol.ExecuteRequest{SQL: sql}
	if len(params) > 0 {
		req.Params = params
	}

	resp, err := c.corr.Send(ctx, protocol.TagExecute, req)
	if err != nil {
		return nil, err
	}
	c.echo(resp)
	return resp, nil
}

// Pending returns the number of requests awaiting a response.
func (c *Conn) Pending() int {
	return c.corr.Pending()
}

// Err returns the channel failure that broke this connection, if any.
func (c *Conn) Err() error {
	return c.corr.Err()
}

// Close stops the execution context and its dispatcher. Requests still
// pending fail with a *ChannelError. Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.port.Close()
		c.closeErr = c.group.Wait()
	})
	return c.closeErr
}

// echo logs service-reported status when debugging.
func (c *Conn) echo(resp *protocol.Response) {
	if !c.cfg.Debug {
		return
	}
	slog.Debug("service status", "success", resp.Success, "error", resp.Error, "bytes", len(resp.Data))
}
