package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/testutil"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/transport"
)

// startCorrelator wires a correlator to a fake service and runs both.
func startCorrelator(t *testing.T, handler testutil.Handler, m *Metrics) (*Correlator, *testutil.FakeService, *transport.Endpoint) {
	t.Helper()
	ctrl, svc := transport.Pipe()
	fake := testutil.NewFakeService(svc, handler)
	corr := NewCorrelator(ctrl, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = fake.Run(ctx); done <- struct{}{} }()
	go func() { _ = corr.Run(ctx); done <- struct{}{} }()
	t.Cleanup(func() {
		cancel()
		_ = ctrl.Close()
		<-done
		<-done
	})
	return corr, fake, ctrl
}

func hold(protocol.Message) (protocol.Response, bool) {
	return protocol.Response{}, false
}

func waitArrivals(t *testing.T, fake *testutil.FakeService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-fake.Arrived():
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d requests arrived", i, n)
		}
	}
}

func TestCorrelator_OutOfOrderResponses(t *testing.T) {
	corr, fake, _ := startCorrelator(t, hold, nil)

	type result struct {
		sql  string
		rows []protocol.Row
		err  error
	}
	results := make(chan result, 2)

	send := func(sql string) {
		resp, err := corr.Send(context.Background(), protocol.TagExecute, protocol.ExecuteRequest{SQL: sql})
		if err != nil {
			results <- result{sql: sql, err: err}
			return
		}
		rows, err := resp.Rows()
		results <- result{sql: sql, rows: rows, err: err}
	}

	go send("first")
	waitArrivals(t, fake, 1)
	go send("second")
	waitArrivals(t, fake, 1)

	received := fake.Received()
	require.Len(t, received, 2)
	fake.SetReply(received[0].ID, testutil.Rows(map[string]any{"n": "first"}))
	fake.SetReply(received[1].ID, testutil.Rows(map[string]any{"n": "second"}))

	require.NoError(t, fake.ReleaseReversed())

	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Len(t, r.rows, 1)
		assert.Equal(t, r.sql, r.rows[0]["n"], "response delivered to the wrong request")
	}
	assert.Zero(t, corr.Pending())
}

func TestCorrelator_ServiceFailureIsAValue(t *testing.T) {
	corr, _, _ := startCorrelator(t, func(protocol.Message) (protocol.Response, bool) {
		return protocol.Response{Success: false, Error: "no such table: nope"}, true
	}, nil)

	resp, err := corr.Send(context.Background(), protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT * FROM nope"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "no such table: nope", resp.Error)
}

func TestCorrelator_ChannelFailureRejectsAllPending(t *testing.T) {
	corr, fake, ctrl := startCorrelator(t, hold, nil)

	const n = 3
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := corr.Send(context.Background(), protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
			errs <- err
		}()
	}
	waitArrivals(t, fake, n)

	crash := errors.New("service crashed")
	ctrl.Fail(crash)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Error(t, err)
		assert.True(t, IsChannelError(err))
		assert.ErrorIs(t, err, crash)
	}
	assert.Zero(t, corr.Pending())
	assert.ErrorIs(t, corr.Err(), crash)
}

func TestCorrelator_BrokenRejectsLaterSends(t *testing.T) {
	corr, _, ctrl := startCorrelator(t, nil, nil)

	crash := errors.New("gone")
	ctrl.Fail(crash)
	require.Eventually(t, func() bool { return corr.Err() != nil }, 2*time.Second, 5*time.Millisecond)

	_, err := corr.Send(context.Background(), protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.True(t, IsChannelError(err))
	assert.ErrorIs(t, err, crash)
}

func TestCorrelator_ContextCancellation(t *testing.T) {
	corr, fake, _ := startCorrelator(t, hold, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := corr.Send(ctx, protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
		errc <- err
	}()
	waitArrivals(t, fake, 1)
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsChannelError(err))
	assert.Zero(t, corr.Pending())

	// The late reply for the abandoned request is dropped.
	require.NoError(t, fake.Release())
	assert.Never(t, func() bool { return corr.Err() != nil }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, corr.Pending())
}

func TestCorrelator_DropsUnknownResponse(t *testing.T) {
	ctrl, svc := transport.Pipe()
	corr := NewCorrelator(ctrl, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = corr.Run(ctx) }()

	stray, err := protocol.NewMessage(999, protocol.TagResponse, protocol.Response{Success: true})
	require.NoError(t, err)
	frame, err := protocol.Encode(stray)
	require.NoError(t, err)
	require.NoError(t, svc.Post(frame))

	fake := testutil.NewFakeService(svc, nil)
	go func() { _ = fake.Run(ctx) }()

	resp, err := corr.Send(ctx, protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NoError(t, corr.Err())
}

func TestCorrelator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	corr, _, _ := startCorrelator(t, nil, m)

	_, err := corr.Send(context.Background(), protocol.TagExecute, protocol.ExecuteRequest{SQL: "SELECT 1"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.requests.WithLabelValues("execute", OutcomeOK)))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.inflight))
	assert.Equal(t, 1, promtest.CollectAndCount(m.latency))
}
