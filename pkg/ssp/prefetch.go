package ssp

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/lazyssp/internal/rowlock"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport"
)

// rowRef names a single (table_id, row_id) pair requested for prefetch.
type rowRef struct {
	RowID, TableID uint64
}

// Prefetch posts a prefetch request for a caller-enumerated batch:
// post a minimum-age request into each row's owner, skipping rows this peer
// already owns, then drain once.
func (c *Cache) Prefetch(ctx context.Context, rowIDs, tableIDs []uint64, slack uint64) error {
	if len(rowIDs) != len(tableIDs) {
		return newErr(KindInvalidArgument, "row_ids and table_ids must have equal length")
	}
	refs := make([]rowRef, len(rowIDs))
	for i := range rowIDs {
		if err := c.validateIDs(rowIDs[i], tableIDs[i]); err != nil {
			return err
		}
		refs[i] = rowRef{RowID: rowIDs[i], TableID: tableIDs[i]}
	}
	return c.postPrefetchRequests(ctx, refs, slack)
}

// PrefetchAll requests every
// (table, row) pair in the configured geometry.
func (c *Cache) PrefetchAll(ctx context.Context, slack uint64) error {
	refs := make([]rowRef, 0, c.geometry.TotalRows())
	for t := uint64(0); t < c.geometry.TableAmount; t++ {
		for r := uint64(0); r < c.geometry.TableSize; r++ {
			refs = append(refs, rowRef{RowID: r, TableID: t})
		}
	}
	return c.postPrefetchRequests(ctx, refs, slack)
}

func (c *Cache) postPrefetchRequests(ctx context.Context, refs []rowRef, slack uint64) error {
	minAge, err := c.minAge(slack)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		loc := c.placement.Place(ref.TableID, ref.RowID)
		if loc.Rank == c.rank {
			continue
		}
		rowByteOffset := int(loc.LocalOffset) * c.rowsLayout.SlotSize()
		wordOffset := rowByteOffset + c.rowsLayout.PrefetchWordOffset(c.rank)

		// The info region's Scratch word is the documented source of inline
		// atomic writes to remote peers (internal/region.InfoRegion); mirror
		// the value there so debug introspection can see the last request
		// this peer posted.
		c.info.Scratch.Store(minAge)
		word := make([]byte, 8)
		binary.LittleEndian.PutUint64(word, minAge)

		if err := c.tr.Write(ctx, loc.Rank, transport.RegionRows, wordOffset, word); err != nil {
			return wrapErr(KindTransport, "post prefetch request failed", err)
		}
	}

	if err := c.tr.Drain(ctx); err != nil {
		return wrapErr(KindTransport, "drain after prefetch failed", err)
	}
	return nil
}

// bodyLayout describes a metadata+payload buffer with no lock-word prefix,
// the shape every pulled or pushed row body takes on the wire once the lock
// word itself has been addressed separately.
func (c *Cache) bodyLayout() slotlayout.Layout {
	return slotlayout.New(false, c.rowsLayout.PayloadSize, 0)
}

// FulfillPrefetches runs a non-blocking sweep of
// this peer's own authoritative rows, pushing any row whose stored age
// satisfies an outstanding requester minimum into that requester's cache
// slot, and dropping any request it cannot satisfy this sweep.
func (c *Cache) FulfillPrefetches(ctx context.Context) error {
	notified, err := c.tr.NotifyTest(ctx, transport.NotifyRowWritten)
	if err != nil {
		return wrapErr(KindTransport, "test ROW_WRITTEN notification failed", err)
	}
	if !notified {
		return nil
	}
	if err := c.tr.NotifyReset(ctx, transport.NotifyRowWritten); err != nil {
		return wrapErr(KindTransport, "reset ROW_WRITTEN notification failed", err)
	}

	rowCount := int(c.placement.RowCountForRank(c.rank))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < rowCount; i++ {
		i := i
		g.Go(func() error {
			return c.fulfillRow(gctx, i)
		})
	}
	return g.Wait()
}

func (c *Cache) fulfillRow(ctx context.Context, rowIndex int) error {
	rowByteOffset := rowIndex * c.rowsLayout.SlotSize()
	body := c.bodyLayout()
	bodyLen := body.SlotSize()

	rowLock := transport.LockWord{T: c.tr, Peer: c.rank, Region: transport.RegionRows, Offset: rowByteOffset}

	for r := 0; r < c.n; r++ {
		wordOffset := rowByteOffset + c.rowsLayout.PrefetchWordOffset(r)

		requested, err := c.tr.AtomicSwap(ctx, c.rank, transport.RegionRows, wordOffset, 0)
		if err != nil {
			return wrapErr(KindTransport, "read-and-clear prefetch request word failed", err)
		}
		if requested == 0 {
			continue
		}

		if err := rowlock.AcquireRead(ctx, rowLock); err != nil {
			return wrapErr(KindTransport, "acquire local row read lock failed", err)
		}
		buf, err := c.tr.Read(ctx, c.rank, transport.RegionRows, rowByteOffset+c.rowsLayout.MetadataOffset(), bodyLen)
		relErr := rowlock.ReleaseRead(ctx, rowLock)
		if err != nil {
			return wrapErr(KindTransport, "read row body for fulfillment failed", err)
		}
		if relErr != nil {
			return wrapErr(KindTransport, "release local row read lock failed", relErr)
		}

		tag := body.ReadTag(buf)
		c.observe(tag)
		if tag.Age < requested {
			c.metrics.incPrefetchDropped(c.rank)
			continue
		}

		destOffset := c.cacheSlotOffset(tag.RowID, tag.TableID)
		destLock := transport.LockWord{T: c.tr, Peer: r, Region: transport.RegionCache, Offset: destOffset}
		if err := rowlock.AcquireWrite(ctx, destLock); err != nil {
			return wrapErr(KindTransport, "acquire requester cache write lock failed", err)
		}
		pushErr := c.tr.Write(ctx, r, transport.RegionCache, destOffset+c.cacheLayout.MetadataOffset(), buf)
		if relErr := rowlock.ReleaseWrite(ctx, destLock); pushErr == nil {
			pushErr = relErr
		}
		if pushErr != nil {
			return wrapErr(KindTransport, "push fulfilled row to requester cache failed", pushErr)
		}
		c.metrics.incPrefetchFulfilled(c.rank)
	}
	return nil
}
