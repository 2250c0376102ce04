package streamreg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/rag/domain"
	"ragcore/internal/ragerr"
)

func TestRegistryOpenTouchClose(t *testing.T) {
	r := New(0)
	id, cctx := r.Open(context.Background(), map[string]string{"query": "refund policy"})
	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	conn, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnActive, conn.Status)

	time.Sleep(time.Millisecond)
	r.Touch(id)
	touched, err := r.Get(id)
	require.NoError(t, err)
	assert.True(t, touched.LastActivity.After(conn.OpenedAt) || touched.LastActivity.Equal(conn.OpenedAt))

	r.Close(id)
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, cctx.Err(), context.Canceled)

	_, err = r.Get(id)
	assert.Equal(t, ragerr.NotFound, ragerr.KindOf(err))
}

func TestRegistryGetUnknownIsNotFound(t *testing.T) {
	r := New(0)
	_, err := r.Get("does-not-exist")
	assert.Equal(t, ragerr.NotFound, ragerr.KindOf(err))
}

func TestRegistryCloseUnknownIsNoop(t *testing.T) {
	r := New(0)
	r.Close("does-not-exist")
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySweepReapsIdleConnections(t *testing.T) {
	r := New(10 * time.Millisecond)
	id, cctx := r.Open(context.Background(), nil)

	reaped := r.Sweep(time.Now())
	assert.Equal(t, 0, reaped)

	reaped = r.Sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, cctx.Err(), context.Canceled)

	_, err := r.Get(id)
	assert.Equal(t, ragerr.NotFound, ragerr.KindOf(err))
}

func TestRegistrySweepKeepsActiveConnections(t *testing.T) {
	r := New(time.Hour)
	id, _ := r.Open(context.Background(), nil)

	reaped := r.Sweep(time.Now())
	assert.Equal(t, 0, reaped)
	assert.Equal(t, 1, r.Len())

	r.Close(id)
}

func TestRegistryRunSweeperStopsOnContextCancel(t *testing.T) {
	r := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper did not return after context cancellation")
	}
}

func TestRegistryRunSweeperStopsOnStop(t *testing.T) {
	r := New(time.Hour)
	done := make(chan struct{})
	go func() {
		r.RunSweeper(context.Background())
		close(done)
	}()

	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper did not return after Stop")
	}
}
