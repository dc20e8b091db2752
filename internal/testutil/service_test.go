package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

func post(t *testing.T, port transport.Port, id uint64, tag protocol.Tag, body any) {
	t.Helper()
	msg, err := protocol.NewMessage(id, tag, body)
	require.NoError(t, err)
	frame, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, port.Post(frame))
}

func recvID(t *testing.T, port transport.Port) uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, err := port.Recv(ctx)
	require.NoError(t, err)
	msg, err := protocol.Decode(frame)
	require.NoError(t, err)
	return msg.ID
}

func TestFakeService_DefaultAck(t *testing.T) {
	ctrl, svc := transport.Pipe()
	f := NewFakeService(svc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	post(t, ctrl, 1, protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
	assert.Equal(t, uint64(1), recvID(t, ctrl))
	assert.Equal(t, 1, f.Count(protocol.TagExecute))

	req, ok := f.LastExecute()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", req.SQL)
}

func TestFakeService_HoldAndReleaseReversed(t *testing.T) {
	ctrl, svc := transport.Pipe()
	f := NewFakeService(svc, func(protocol.Message) (protocol.Response, bool) {
		return protocol.Response{}, false
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	post(t, ctrl, 1, protocol.TagExecute, protocol.ExecuteRequest{SQL: "a"})
	post(t, ctrl, 2, protocol.TagExecute, protocol.ExecuteRequest{SQL: "b"})
	<-f.Arrived()
	<-f.Arrived()

	require.NoError(t, f.ReleaseReversed())
	assert.Equal(t, uint64(2), recvID(t, ctrl))
	assert.Equal(t, uint64(1), recvID(t, ctrl))
}
