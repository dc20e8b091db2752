package protocol

import (
	"fmt"
	"sort"
)

// Tag identifies the kind of a message.
type Tag string

const (
	// TagInitialize asks the service to open its storage and provision schema.
	TagInitialize Tag = "initialize"
	// TagExecute asks the service to run one SQL statement.
	TagExecute Tag = "execute"
	// TagResponse carries the service's answer to a previous request.
	TagResponse Tag = "response"
)

// Message is one envelope on the channel.
//
// ID is assigned by the sender of a request and echoed on the response.
// Body holds the still-encoded payload; use DecodeBody to read it.
type Message struct {
	ID   uint64 `msgpack:"id"`
	Tag  Tag    `msgpack:"tag"`
	Body []byte `msgpack:"body"`
}

// InitializeRequest is the body of an initialize message.
type InitializeRequest struct {
	// Name identifies the storage. ":memory:" or "" selects a transient database.
	Name string `msgpack:"name" json:"name"`
	// Debug enables verbose echoing of service status.
	Debug bool `msgpack:"debug" json:"debug"`
}

// InitializeResult is the data of a successful initialize response.
type InitializeResult struct {
	Name string `msgpack:"name" json:"name"`
}

// ExecuteRequest is the body of an execute message.
// Params is omitted for unparameterized statements.
type ExecuteRequest struct {
	SQL    string `msgpack:"sql" json:"sql"`
	Params []any  `msgpack:"params,omitempty" json:"params,omitempty"`
}

// Response is the body of a response message.
//
// Data holds the encoded payload (rows for execute, InitializeResult for
// initialize). Error is set when Success is false.
type Response struct {
	Success bool   `msgpack:"success" json:"success"`
	Data    []byte `msgpack:"data,omitempty" json:"-"`
	Error   string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Rows decodes Data as a sequence of row objects.
// A response without data yields an empty, non-nil slice.
func (r *Response) Rows() ([]Row, error) {
	if len(r.Data) == 0 {
		return []Row{}, nil
	}
	var raw []map[string]any
	if err := unmarshal(r.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	rows := make([]Row, len(raw))
	for i, m := range raw {
		rows[i] = normalizeRow(m)
	}
	return rows, nil
}

// Init decodes Data as an InitializeResult.
func (r *Response) Init() (InitializeResult, error) {
	var res InitializeResult
	if len(r.Data) == 0 {
		return res, nil
	}
	if err := unmarshal(r.Data, &res); err != nil {
		return res, fmt.Errorf("decode initialize result: %w", err)
	}
	return res, nil
}

// Row is one result row keyed by column name.
type Row map[string]any

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
