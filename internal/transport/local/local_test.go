package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/lazyssp/internal/transport"
)

func TestReadWriteRoundTrip(t *testing.T) {
	c := NewCluster(2, 16, 64, 64)
	a := c.Peer(0)
	b := c.Peer(1)
	ctx := context.Background()

	require.NoError(t, a.Write(ctx, 1, transport.RegionCache, 0, []byte("hello!!!")))
	got, err := b.Read(ctx, 1, transport.RegionCache, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello!!!"), got)
}

func TestCompareAndSwapAndFetchAdd(t *testing.T) {
	c := NewCluster(1, 16, 16, 16)
	p := c.Peer(0)
	ctx := context.Background()

	observed, swapped, err := p.CompareAndSwap(ctx, 0, transport.RegionRows, 0, 0, 7)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, uint32(0), observed)

	observed, swapped, err = p.CompareAndSwap(ctx, 0, transport.RegionRows, 0, 0, 9)
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Equal(t, uint32(7), observed)

	before, err := p.FetchAdd(ctx, 0, transport.RegionRows, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), before)
}

func TestAtomicSwap(t *testing.T) {
	c := NewCluster(1, 16, 16, 16)
	p := c.Peer(0)
	ctx := context.Background()

	before, err := p.AtomicSwap(ctx, 0, transport.RegionRows, 0, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), before)

	before, err = p.AtomicSwap(ctx, 0, transport.RegionRows, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), before)
}

func TestNotifyTestWaitReset(t *testing.T) {
	c := NewCluster(2, 8, 8, 8)
	a := c.Peer(0)
	b := c.Peer(1)
	ctx := context.Background()

	ok, err := b.NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.WriteNotify(ctx, 1, transport.RegionRows, 0, []byte{1, 2, 3, 4}, transport.NotifyRowWritten))

	ok, err = b.NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.NotifyReset(ctx, transport.NotifyRowWritten))
	ok, err = b.NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifyWaitTimesOut(t *testing.T) {
	c := NewCluster(1, 8, 8, 8)
	p := c.Peer(0)
	ctx := context.Background()

	err := p.NotifyWait(ctx, transport.NotifyRowWritten, 10*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestBarrierReleasesAllPeers(t *testing.T) {
	c := NewCluster(3, 8, 8, 8)
	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func(rank int) {
			_ = c.Peer(rank).Barrier(context.Background())
			done <- rank
		}(i)
	}
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case r := <-done:
			seen[r] = true
		case <-time.After(time.Second):
			t.Fatal("barrier did not release all peers")
		}
	}
	assert.Len(t, seen, 3)
}
