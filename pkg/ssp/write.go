package ssp

import (
	"context"

	"github.com/dreamware/lazyssp/internal/rowlock"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport"
)

// Write stages the row into this peer's
// local cache slot, then pushes it to its authoritative owner with a
// ROW_WRITTEN notification.
func (c *Cache) Write(ctx context.Context, rowID, tableID uint64, payload []byte) error {
	if payload == nil {
		return newErr(KindInvalidArgument, "payload must not be nil")
	}
	if len(payload) != c.rowsLayout.PayloadSize {
		return newErr(KindInvalidArgument, "payload length does not match row_size")
	}
	if err := c.validateIDs(rowID, tableID); err != nil {
		return err
	}

	loc := c.placement.Place(tableID, rowID)
	cacheOffset := c.cacheSlotOffset(rowID, tableID)

	age := c.info.Clock.Current()
	tag := slotlayout.MetadataTag{Age: age, RowID: rowID, TableID: tableID}

	slot := make([]byte, c.cacheLayout.SlotSize())
	c.cacheLayout.WriteTag(slot, tag)
	c.cacheLayout.WritePayload(slot, payload)

	// metaPayload is the metadata+payload suffix of slot, excluding the lock
	// word prefix: the only bytes a remote write/push may touch, so it never
	// races the lock word it is itself synchronised by.
	metaPayload := slot[c.cacheLayout.MetadataOffset():]

	cacheLock := transport.LockWord{T: c.tr, Peer: c.rank, Region: transport.RegionCache, Offset: cacheOffset}
	if err := rowlock.AcquireWrite(ctx, cacheLock); err != nil {
		return wrapErr(KindTransport, "acquire local cache write lock failed", err)
	}
	if err := c.tr.Write(ctx, c.rank, transport.RegionCache, cacheOffset+c.cacheLayout.MetadataOffset(), metaPayload); err != nil {
		_ = rowlock.ReleaseWrite(ctx, cacheLock)
		return wrapErr(KindTransport, "stage write into local cache failed", err)
	}
	if err := rowlock.ReleaseWrite(ctx, cacheLock); err != nil {
		return wrapErr(KindTransport, "release local cache write lock failed", err)
	}

	rowByteOffset := int(loc.LocalOffset) * c.rowsLayout.SlotSize()
	rowLock := transport.LockWord{T: c.tr, Peer: loc.Rank, Region: transport.RegionRows, Offset: rowByteOffset}

	if err := rowlock.AcquireRead(ctx, cacheLock); err != nil {
		return wrapErr(KindTransport, "acquire local cache read lock failed", err)
	}
	if err := rowlock.AcquireWrite(ctx, rowLock); err != nil {
		_ = rowlock.ReleaseRead(ctx, cacheLock)
		return wrapErr(KindTransport, "acquire authoritative write lock failed", err)
	}

	pushErr := c.tr.WriteNotify(ctx, loc.Rank, transport.RegionRows, rowByteOffset+c.rowsLayout.MetadataOffset(), metaPayload, transport.NotifyRowWritten)

	if err := rowlock.ReleaseWrite(ctx, rowLock); err != nil && pushErr == nil {
		pushErr = wrapErr(KindTransport, "release authoritative write lock failed", err)
	}
	if err := rowlock.ReleaseRead(ctx, cacheLock); err != nil && pushErr == nil {
		pushErr = wrapErr(KindTransport, "release local cache read lock failed", err)
	}
	if pushErr != nil {
		return wrapErr(KindTransport, "push row to owner failed", pushErr)
	}

	if err := c.tr.Drain(ctx); err != nil {
		return wrapErr(KindTransport, "drain after write failed", err)
	}

	c.observe(tag)
	c.metrics.incWrite(c.rank)
	return nil
}
