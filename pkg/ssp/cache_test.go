package ssp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/lazyssp/internal/placement"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport"
	"github.com/dreamware/lazyssp/internal/transport/local"
)

func scenarioGeometry() placement.Geometry {
	return placement.Geometry{
		PeerCount:   scPeerCount,
		BlockSize:   scBlockSize,
		TableAmount: scTableAmount,
		TableSize:   scTableSize,
	}
}

func scRowsLayout() slotlayout.Layout  { return slotlayout.New(true, scRowSize, scPeerCount) }
func scCacheLayout() slotlayout.Layout { return slotlayout.New(true, scRowSize, 0) }

// scenario geometry matches a worked 3-peer example:
// table_amount=3, table_size=4, row_size=8, block_size=4, cache_size=12.
const (
	scTableAmount = 3
	scTableSize   = 4
	scRowSize     = 8
	scBlockSize   = 4
	scCacheSize   = 12
	scPeerCount   = 3
)

func newScenarioCluster(t *testing.T) (*local.Cluster, int, int, int) {
	t.Helper()
	rowsLayout := scRowsLayout()
	cacheLayout := scCacheLayout()

	maxRowsPerPeer := 0
	for r := 0; r < scPeerCount; r++ {
		n := int(scenarioGeometry().RowCount(r))
		if n > maxRowsPerPeer {
			maxRowsPerPeer = n
		}
	}
	rowsSize := maxRowsPerPeer * rowsLayout.SlotSize()
	cacheSize := scCacheSize * cacheLayout.SlotSize()
	cluster := local.NewCluster(scPeerCount, 8, rowsSize, cacheSize)
	return cluster, rowsSize, cacheSize, maxRowsPerPeer
}

// newScenarioCaches builds and Initialises every peer's Cache concurrently
// (New's barrier requires every peer to call it).
func newScenarioCaches(t *testing.T) (*local.Cluster, []*Cache) {
	t.Helper()
	cluster, _, _, _ := newScenarioCluster(t)

	caches := make([]*Cache, scPeerCount)
	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < scPeerCount; r++ {
		r := r
		g.Go(func() error {
			c, err := New(ctx, scTableAmount, scTableSize, scRowSize, cluster.Peer(r),
				WithBlockSize(scBlockSize),
				WithCacheSize(scCacheSize),
			)
			if err != nil {
				return err
			}
			caches[r] = c
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return cluster, caches
}

func payload(b byte) []byte {
	p := make([]byte, scRowSize)
	for i := range p {
		p[i] = b + byte(i)
	}
	return p
}

func TestSelfWriteVisibility(t *testing.T) {
	_, caches := newScenarioCaches(t)
	c := caches[0]
	ctx := context.Background()

	c.Clock()
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, c.Write(ctx, 0, 0, want))

	out := make([]byte, scRowSize)
	tag, err := c.Read(ctx, 0, 0, 0, out)
	require.NoError(t, err)
	require.Equal(t, want, out)
	require.Equal(t, uint64(1), tag.Age)
	require.Equal(t, uint64(0), tag.RowID)
	require.Equal(t, uint64(0), tag.TableID)
}

func TestCrossPeerStaleReadWithinSlack(t *testing.T) {
	_, caches := newScenarioCaches(t)
	writer, reader := caches[0], caches[1]
	ctx := context.Background()

	for writer.info.Clock.Current() < 5 {
		writer.Clock()
	}
	x := payload(42)
	require.NoError(t, writer.Write(ctx, 0, 0, x))

	for reader.info.Clock.Current() < 7 {
		reader.Clock()
	}

	out := make([]byte, scRowSize)
	tag, err := reader.Read(ctx, 0, 0, 1, out)
	require.NoError(t, err)
	require.Equal(t, x, out)
	require.Equal(t, uint64(5), tag.Age)
}

func TestCrossPeerBlockedOutsideSlackUntilNewerWrite(t *testing.T) {
	_, caches := newScenarioCaches(t)
	writer, reader := caches[0], caches[1]
	ctx := context.Background()

	for writer.info.Clock.Current() < 5 {
		writer.Clock()
	}
	require.NoError(t, writer.Write(ctx, 0, 0, payload(1)))

	for reader.info.Clock.Current() < 8 {
		reader.Clock()
	}
	// min_age = 8 - 1 - 1 = 6, but the only write so far is age 5: the read
	// must not be satisfiable yet.

	done := make(chan error, 1)
	out := make([]byte, scRowSize)
	go func() {
		_, err := reader.Read(ctx, 0, 0, 1, out)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("read returned before a sufficiently fresh write was made")
	case <-time.After(50 * time.Millisecond):
	}

	for writer.info.Clock.Current() < 6 {
		writer.Clock()
	}
	require.NoError(t, writer.Write(ctx, 0, 0, payload(2)))

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Equal(t, payload(2), out)
	case <-time.After(2 * time.Second):
		t.Fatal("read never unblocked after a fresh-enough write")
	}
}

func TestPrefetchFulfillment(t *testing.T) {
	_, caches := newScenarioCaches(t)
	owner, requester := caches[0], caches[2]
	ctx := context.Background()

	for owner.info.Clock.Current() < 3 {
		owner.Clock()
	}
	want := payload(7)
	require.NoError(t, owner.Write(ctx, 0, 0, want))

	for requester.info.Clock.Current() < 4 {
		requester.Clock()
	}
	// min_age = 4 - 2 - 1 = 1, satisfied by the owner's stored age of 3.
	require.NoError(t, requester.Prefetch(ctx, []uint64{0}, []uint64{0}, 2))

	require.NoError(t, owner.FulfillPrefetches(ctx))

	loc := owner.placement.Place(0, 0)
	rowByteOffset := int(loc.LocalOffset) * owner.rowsLayout.SlotSize()
	wordOffset := rowByteOffset + owner.rowsLayout.PrefetchWordOffset(requester.rank)
	word, err := owner.tr.Read(ctx, owner.rank, transport.RegionRows, wordOffset, 8)
	require.NoError(t, err)
	for _, b := range word {
		require.Zero(t, b, "requester's prefetch word must be cleared after fulfillment")
	}

	cacheOffset := requester.cacheSlotOffset(0, 0)
	slot, err := requester.tr.Read(ctx, requester.rank, transport.RegionCache, cacheOffset, requester.cacheLayout.SlotSize())
	require.NoError(t, err)
	tag := requester.cacheLayout.ReadTag(slot)
	require.True(t, tag.Matches(0, 0))
	require.Equal(t, uint64(3), tag.Age)
	require.Equal(t, want, requester.cacheLayout.ReadPayload(slot))
}

func TestPrefetchDroppedWhenUnderstale(t *testing.T) {
	_, caches := newScenarioCaches(t)
	owner, requester := caches[0], caches[2]
	ctx := context.Background()

	for owner.info.Clock.Current() < 3 {
		owner.Clock()
	}
	require.NoError(t, owner.Write(ctx, 0, 0, payload(9)))

	for requester.info.Clock.Current() < 11 {
		requester.Clock()
	}
	// min_age = 11 - 0 - 1 = 10, understale against the owner's age of 3.
	require.NoError(t, requester.Prefetch(ctx, []uint64{0}, []uint64{0}, 0))
	require.NoError(t, owner.FulfillPrefetches(ctx))

	loc := owner.placement.Place(0, 0)
	rowByteOffset := int(loc.LocalOffset) * owner.rowsLayout.SlotSize()
	wordOffset := rowByteOffset + owner.rowsLayout.PrefetchWordOffset(requester.rank)
	word, err := owner.tr.Read(ctx, owner.rank, transport.RegionRows, wordOffset, 8)
	require.NoError(t, err)
	for _, b := range word {
		require.Zero(t, b, "a dropped request word must still be cleared")
	}

	cacheOffset := requester.cacheSlotOffset(0, 0)
	slot, err := requester.tr.Read(ctx, requester.rank, transport.RegionCache, cacheOffset, requester.cacheLayout.SlotSize())
	require.NoError(t, err)
	tag := requester.cacheLayout.ReadTag(slot)
	require.Zero(t, tag.Age, "a dropped prefetch must not have populated the requester's cache")
}

func TestSetMaxThreadsRejectsOverflow(t *testing.T) {
	_, caches := newScenarioCaches(t)
	c := caches[0]
	err := c.SetMaxThreads(1 << 30)
	require.Error(t, err)
	kind, ok := AsKind(err)
	require.True(t, ok)
	require.Equal(t, KindResourceOverflow, kind)
}

func TestReadBeforeClockIsNotInitialised(t *testing.T) {
	_, caches := newScenarioCaches(t)
	c := caches[0]
	out := make([]byte, scRowSize)
	_, err := c.Read(context.Background(), 0, 0, 0, out)
	require.Error(t, err)
	kind, ok := AsKind(err)
	require.True(t, ok)
	require.Equal(t, KindNotInitialised, kind)
}

func TestWriteRejectsOutOfRangeIDs(t *testing.T) {
	_, caches := newScenarioCaches(t)
	c := caches[0]
	c.Clock()
	err := c.Write(context.Background(), scTableSize, 0, payload(0))
	require.Error(t, err)
	kind, ok := AsKind(err)
	require.True(t, ok)
	require.Equal(t, KindInvalidArgument, kind)
}

func TestTerminate(t *testing.T) {
	_, caches := newScenarioCaches(t)
	g, ctx := errgroup.WithContext(context.Background())
	for _, c := range caches {
		c := c
		g.Go(func() error { return c.Terminate(ctx) })
	}
	require.NoError(t, g.Wait())
}
