package protocol

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a message into a transport frame.
func Encode(m Message) ([]byte, error) {
	b, err := marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Tag, err)
	}
	return b, nil
}

// Decode parses a transport frame back into a message.
func Decode(frame []byte) (Message, error) {
	var m Message
	if err := unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return m, nil
}

// NewMessage builds a message with body encoded from v.
func NewMessage(id uint64, tag Tag, v any) (Message, error) {
	body, err := marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s body: %w", tag, err)
	}
	return Message{ID: id, Tag: tag, Body: body}, nil
}

// DecodeBody decodes the message body into v.
func (m Message) DecodeBody(v any) error {
	if err := unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", m.Tag, err)
	}
	return nil
}

// NewResponse builds a response body. data is encoded into Response.Data;
// a nil data leaves it empty.
func NewResponse(success bool, data any, errMsg string) (Response, error) {
	r := Response{Success: success, Error: errMsg}
	if data == nil {
		return r, nil
	}
	b, err := marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("encode response data: %w", err)
	}
	r.Data = b
	return r, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

// normalizeRow folds decoded scalars into a small set of Go types:
// int64, float64, string, bool, []byte and nil.
func normalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return val
	case float32:
		return float64(val)
	default:
		return v
	}
}
