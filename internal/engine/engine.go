package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/schema"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/store"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

// Engine is the execution service event loop.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - all store access happens inside Run
type Engine struct {
	driver string
	schema *schema.Schema
	store  *store.Store
	debug  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDriver selects the SQLite driver (store.DriverMattn or store.DriverModernc).
// An empty driver keeps the default.
func WithDriver(driver string) Option {
	return func(e *Engine) {
		if driver != "" {
			e.driver = driver
		}
	}
}

// WithSchema sets the schema provisioned on initialize.
// A nil schema provisions nothing.
func WithSchema(sc *schema.Schema) Option {
	return func(e *Engine) {
		e.schema = sc
	}
}

// New creates an Engine. Storage is opened lazily by the first initialize.
func New(opts ...Option) *Engine {
	e := &Engine{driver: store.DriverMattn}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run serves requests from port until ctx is cancelled or the channel fails
// or closes. The store is closed when Run returns.
//
// A panic while handling a request is converted into a channel-level failure.
func (e *Engine) Run(ctx context.Context, port transport.Port) (err error) {
	slog.Info("execution service starting")

	defer func() {
		if r := recover(); r != nil {
			crash := fmt.Errorf("execution service crashed: %v", r)
			slog.Error("execution service crashed", "panic", r)
			port.Fail(crash)
			err = crash
		}
		e.closeStore()
	}()

	for {
		frame, err := port.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				slog.Info("execution service stopping", "reason", err)
				return nil
			}
			return err
		}

		reply := e.handle(ctx, frame)
		out, err := protocol.Encode(reply)
		if err != nil {
			return fmt.Errorf("encode response %d: %w", reply.ID, err)
		}
		if err := port.Post(out); err != nil {
			return fmt.Errorf("post response %d: %w", reply.ID, err)
		}
	}
}

// handle decodes and routes one request frame, always producing a response.
func (e *Engine) handle(ctx context.Context, frame []byte) protocol.Message {
	msg, err := protocol.Decode(frame)
	if err != nil {
		return e.failure(0, newServiceError(ErrCodeBadRequest, "%v", err))
	}

	slog.Debug("request received", "id", msg.ID, "tag", msg.Tag)

	switch msg.Tag {
	case protocol.TagInitialize:
		var req protocol.InitializeRequest
		if err := msg.DecodeBody(&req); err != nil {
			return e.failure(msg.ID, newServiceError(ErrCodeBadRequest, "%v", err))
		}
		return e.initialize(ctx, msg.ID, req)

	case protocol.TagExecute:
		var req protocol.ExecuteRequest
		if err := msg.DecodeBody(&req); err != nil {
			return e.failure(msg.ID, newServiceError(ErrCodeBadRequest, "%v", err))
		}
		return e.execute(ctx, msg.ID, req)

	default:
		return e.failure(msg.ID, newServiceError(ErrCodeBadRequest, "unknown tag %q", msg.Tag))
	}
}

// initialize opens storage and provisions the schema. A second initialize on
// an already initialized service acknowledges with the current storage name.
func (e *Engine) initialize(ctx context.Context, id uint64, req protocol.InitializeRequest) protocol.Message {
	e.debug = req.Debug
	if e.debug {
		slog.Info("initializing storage", "name", req.Name)
	}

	if e.store == nil {
		st, err := store.Open(e.driver, req.Name)
		if err != nil {
			return e.failure(id, newServiceError(ErrCodeInitFailed, "%v", err))
		}
		if e.schema != nil {
			if err := st.Provision(ctx, e.schema); err != nil {
				st.Close()
				return e.failure(id, newServiceError(ErrCodeInitFailed, "%v", err))
			}
		}
		e.store = st
	}

	if e.debug {
		if e.store.Transient() {
			slog.Info("created transient database", "name", e.store.Name())
		} else {
			slog.Info("created persisted database", "name", e.store.Name())
		}
	}

	return e.success(id, protocol.InitializeResult{Name: e.store.Name()})
}

// execute runs one statement. Statement failures are reported in the envelope.
func (e *Engine) execute(ctx context.Context, id uint64, req protocol.ExecuteRequest) protocol.Message {
	if e.store == nil {
		return e.failure(id, newServiceError(ErrCodeNotInitialized, "execute before initialize"))
	}

	rows, err := e.store.Query(ctx, req.SQL, req.Params...)
	if err != nil {
		slog.Warn("statement failed", "id", id, "sql", req.SQL, "error", err)
		return e.failure(id, newServiceError(ErrCodeExecFailed, "%v", err))
	}

	if e.debug {
		slog.Debug("statement executed", "id", id, "sql", req.SQL, "rows", len(rows))
	}

	return e.success(id, rows)
}

func (e *Engine) success(id uint64, data any) protocol.Message {
	resp, err := protocol.NewResponse(true, data, "")
	if err != nil {
		return e.failure(id, newServiceError(ErrCodeExecFailed, "%v", err))
	}
	return e.reply(id, resp)
}

func (e *Engine) failure(id uint64, se *ServiceError) protocol.Message {
	resp, _ := protocol.NewResponse(false, nil, se.Error())
	return e.reply(id, resp)
}

func (e *Engine) reply(id uint64, resp protocol.Response) protocol.Message {
	msg, err := protocol.NewMessage(id, protocol.TagResponse, resp)
	if err != nil {
		// A Response of plain fields always encodes.
		panic(fmt.Sprintf("encode response: %v", err))
	}
	if e.debug {
		slog.Debug("response", "id", id, "success", resp.Success, "error", resp.Error)
	}
	return msg
}

func (e *Engine) closeStore() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
	e.store = nil
}
