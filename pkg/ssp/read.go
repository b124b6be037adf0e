package ssp

import (
	"context"

	"github.com/dreamware/lazyssp/internal/rowlock"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport"
)

// Read runs an unbounded retry loop that pulls a
// fresh-enough copy of the row from its owner into the local cache whenever
// the cache is missing or stale, then copies the payload out under the local
// cache's read lock.
func (c *Cache) Read(ctx context.Context, rowID, tableID, slack uint64, out []byte) (slotlayout.MetadataTag, error) {
	if out == nil {
		return slotlayout.MetadataTag{}, newErr(KindInvalidArgument, "out payload must not be nil")
	}
	if len(out) != c.rowsLayout.PayloadSize {
		return slotlayout.MetadataTag{}, newErr(KindInvalidArgument, "out payload length does not match row_size")
	}
	if err := c.validateIDs(rowID, tableID); err != nil {
		return slotlayout.MetadataTag{}, err
	}

	minAge, err := c.minAge(slack)
	if err != nil {
		return slotlayout.MetadataTag{}, err
	}

	cacheOffset := c.cacheSlotOffset(rowID, tableID)
	loc := c.placement.Place(tableID, rowID)
	rowByteOffset := int(loc.LocalOffset) * c.rowsLayout.SlotSize()

	cacheLock := transport.LockWord{T: c.tr, Peer: c.rank, Region: transport.RegionCache, Offset: cacheOffset}
	rowLock := transport.LockWord{T: c.tr, Peer: loc.Rank, Region: transport.RegionRows, Offset: rowByteOffset}

	fresh := false
	missed := false
	for !fresh {
		slot, err := c.tr.Read(ctx, c.rank, transport.RegionCache, cacheOffset, c.cacheLayout.SlotSize())
		if err != nil {
			return slotlayout.MetadataTag{}, wrapErr(KindTransport, "inspect local cache failed", err)
		}
		tag := c.cacheLayout.ReadTag(slot)
		if tag.Matches(rowID, tableID) && tag.Age >= minAge {
			fresh = true
			break
		}

		missed = true
		pullLen := c.cacheLayout.SlotSize() - c.cacheLayout.MetadataOffset()

		if err := rowlock.AcquireWrite(ctx, cacheLock); err != nil {
			return slotlayout.MetadataTag{}, wrapErr(KindTransport, "acquire local cache write lock failed", err)
		}
		if err := rowlock.AcquireRead(ctx, rowLock); err != nil {
			_ = rowlock.ReleaseWrite(ctx, cacheLock)
			return slotlayout.MetadataTag{}, wrapErr(KindTransport, "acquire authoritative read lock failed", err)
		}

		pulled, pullErr := c.tr.Read(ctx, loc.Rank, transport.RegionRows, rowByteOffset+c.rowsLayout.MetadataOffset(), pullLen)

		if err := rowlock.ReleaseRead(ctx, rowLock); err != nil && pullErr == nil {
			pullErr = wrapErr(KindTransport, "release authoritative read lock failed", err)
		}
		if pullErr == nil {
			pullErr = c.tr.Write(ctx, c.rank, transport.RegionCache, cacheOffset+c.cacheLayout.MetadataOffset(), pulled)
		}
		if err := rowlock.ReleaseWrite(ctx, cacheLock); err != nil && pullErr == nil {
			pullErr = wrapErr(KindTransport, "release local cache write lock failed", err)
		}
		if pullErr != nil {
			return slotlayout.MetadataTag{}, wrapErr(KindTransport, "pull row from owner failed", pullErr)
		}
	}

	if err := rowlock.AcquireRead(ctx, cacheLock); err != nil {
		return slotlayout.MetadataTag{}, wrapErr(KindTransport, "acquire local cache read lock failed", err)
	}
	slot, err := c.tr.Read(ctx, c.rank, transport.RegionCache, cacheOffset, c.cacheLayout.SlotSize())
	if err != nil {
		_ = rowlock.ReleaseRead(ctx, cacheLock)
		return slotlayout.MetadataTag{}, wrapErr(KindTransport, "copy out local cache slot failed", err)
	}
	tag := c.cacheLayout.ReadTag(slot)
	copy(out, c.cacheLayout.ReadPayload(slot))
	if err := rowlock.ReleaseRead(ctx, cacheLock); err != nil {
		return slotlayout.MetadataTag{}, wrapErr(KindTransport, "release local cache read lock failed", err)
	}

	c.metrics.incRead(c.rank)
	if missed {
		c.metrics.incCacheMiss(c.rank)
	} else {
		c.metrics.incCacheHit(c.rank)
	}
	return tag, nil
}
