package rpc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/lazyssp/internal/transport"
)

// harness starts n peers, each with its own Server and httptest.Server, and
// returns a Transport per rank wired to the full address table.
type harness struct {
	servers []*httptest.Server
	peers   []*Peer
}

func newHarness(t *testing.T, n, infoSize, rowsSize, cacheSize int) *harness {
	t.Helper()
	h := &harness{}
	backing := make([]*Server, n)
	for i := 0; i < n; i++ {
		backing[i] = NewServer(infoSize, rowsSize, cacheSize, n, nil)
		ts := httptest.NewServer(backing[i].Handler())
		t.Cleanup(ts.Close)
		h.servers = append(h.servers, ts)
	}
	addrs := make(Addresses, n)
	for i, ts := range h.servers {
		addrs[i] = ts.URL
	}
	for i := 0; i < n; i++ {
		h.peers = append(h.peers, NewPeer(i, addrs, backing[i]))
	}
	return h
}

func TestRemoteReadWriteRoundTrip(t *testing.T) {
	h := newHarness(t, 2, 16, 64, 64)
	ctx := context.Background()

	require.NoError(t, h.peers[0].Write(ctx, 1, transport.RegionCache, 0, []byte("hello!!!")))
	got, err := h.peers[1].Read(ctx, 1, transport.RegionCache, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello!!!"), got)
}

func TestLocalFastPathAvoidsNetwork(t *testing.T) {
	h := newHarness(t, 1, 16, 16, 16)
	ctx := context.Background()

	require.NoError(t, h.peers[0].Write(ctx, 0, transport.RegionRows, 0, []byte{9, 9, 9, 9}))
	got, err := h.peers[0].Read(ctx, 0, transport.RegionRows, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, got)
}

func TestRemoteCompareAndSwapAndFetchAdd(t *testing.T) {
	h := newHarness(t, 2, 16, 16, 16)
	ctx := context.Background()

	observed, swapped, err := h.peers[0].CompareAndSwap(ctx, 1, transport.RegionRows, 0, 0, 7)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, uint32(0), observed)

	before, err := h.peers[0].FetchAdd(ctx, 1, transport.RegionRows, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), before)
}

func TestRemoteAtomicSwap(t *testing.T) {
	h := newHarness(t, 2, 16, 16, 16)
	ctx := context.Background()

	before, err := h.peers[0].AtomicSwap(ctx, 1, transport.RegionRows, 0, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), before)
}

func TestRemoteNotifyTestWaitReset(t *testing.T) {
	h := newHarness(t, 2, 8, 8, 8)
	ctx := context.Background()

	ok, err := h.peers[1].NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.peers[0].WriteNotify(ctx, 1, transport.RegionRows, 0, []byte{1, 2, 3, 4}, transport.NotifyRowWritten))

	ok, err = h.peers[1].NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.peers[1].NotifyReset(ctx, transport.NotifyRowWritten))
	ok, err = h.peers[1].NotifyTest(ctx, transport.NotifyRowWritten)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBarrierReleasesAllPeersOverHTTP(t *testing.T) {
	h := newHarness(t, 3, 8, 8, 8)
	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func(rank int) {
			_ = h.peers[rank].Barrier(context.Background())
			done <- rank
		}(i)
	}
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case r := <-done:
			seen[r] = true
		case <-time.After(2 * time.Second):
			t.Fatal("barrier did not release all peers")
		}
	}
	assert.Len(t, seen, 3)
}
