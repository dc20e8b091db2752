package bridge

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/testutil"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

func TestShared_GetReturnsSameConn(t *testing.T) {
	var launches atomic.Int32
	var fakes []*testutil.FakeService

	s := NewSharedWith(Config{Name: "shared.sqlite"}, func(cfg Config) *Conn {
		launches.Add(1)
		ctrl, svc := transport.Pipe()
		fake := testutil.NewFakeService(svc, ackInit)
		fakes = append(fakes, fake)
		go func() { _ = fake.Run(context.Background()) }()
		return NewConn(ctrl, cfg)
	})
	defer s.Close()

	ctx := context.Background()
	a, err := s.Get(ctx)
	require.NoError(t, err)
	b, err := s.Get(ctx)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int32(1), launches.Load())
	require.Len(t, fakes, 1)
	assert.Equal(t, 1, fakes[0].Count(protocol.TagInitialize))
}

func TestShared_RetriesAfterFailedInit(t *testing.T) {
	var launches atomic.Int32
	s := NewSharedWith(Config{}, func(cfg Config) *Conn {
		n := launches.Add(1)
		ctrl, svc := transport.Pipe()
		fake := testutil.NewFakeService(svc, func(msg protocol.Message) (protocol.Response, bool) {
			if n == 1 {
				return protocol.Response{Success: false, Error: "locked"}, true
			}
			return ackInit(msg)
		})
		go func() { _ = fake.Run(context.Background()) }()
		return NewConn(ctrl, cfg)
	})
	defer s.Close()

	_, err := s.Get(context.Background())
	require.Error(t, err)

	c, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, c.Initialized())
	assert.Equal(t, int32(2), launches.Load())
}

func TestShared_InProcess(t *testing.T) {
	s := NewShared(Config{Name: ":memory:"})
	c, err := s.Get(context.Background())
	require.NoError(t, err)

	resp, err := c.Execute(context.Background(), "SELECT count(*) AS n FROM users")
	require.NoError(t, err)
	rows, err := resp.Rows()
	require.NoError(t, err)
	assert.Equal(t, int64(6), rows[0]["n"])

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
