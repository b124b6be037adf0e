package transport

import (
	"context"
	"time"
)

// RegionID names one of the three addressable memory regions every peer
// hosts: Info, Rows and Cache.
type RegionID int

const (
	RegionInfo RegionID = iota
	RegionRows
	RegionCache
)

// NotifyRowWritten is the level-triggered, non-addressed notification id a
// write raises on a row's owner: "new rows may have appeared on me since
// last sweep". Its value is arbitrary but nonzero.
const NotifyRowWritten uint64 = 1

// Transport is the one-sided communication substrate the core cache logic
// treats as an external collaborator: remote read, remote write,
// write-with-notification, atomic CAS, atomic fetch-add, queue-wait,
// notification wait/reset and barrier.
//
// Every method is addressed as (peer, region, offset, length) rather than by
// raw pointer: offsets are always computed by the core through
// internal/slotlayout and internal/placement, never invented here.
type Transport interface {
	// Rank is this peer's own rank in [0, PeerCount()).
	Rank() int
	// PeerCount is the total number of peers, fixed for the process lifetime.
	PeerCount() int

	// Read blocks until length bytes starting at offset in the named region
	// on peer are copied back to the caller; every remote read blocks until
	// the underlying queue drains.
	Read(ctx context.Context, peer int, region RegionID, offset, length int) ([]byte, error)

	// Write publishes data to peer's region at offset and returns once the
	// local side is submitted to the queue; it does not itself wait for the
	// write to land. Callers that reuse the source buffer must Drain first.
	Write(ctx context.Context, peer int, region RegionID, offset int, data []byte) error

	// WriteNotify is Write plus a level-triggered notification raised on the
	// destination peer.
	WriteNotify(ctx context.Context, peer int, region RegionID, offset int, data []byte, notifyID uint64) error

	// CompareAndSwap performs an atomic compare-and-swap of a 4-byte word at
	// offset in peer's region. It returns the value observed at the time of
	// the attempt and whether it matched oldVal (and was therefore replaced
	// by newVal).
	CompareAndSwap(ctx context.Context, peer int, region RegionID, offset int, oldVal, newVal uint32) (observed uint32, swapped bool, err error)

	// FetchAdd atomically adds delta to a 4-byte word at offset in peer's
	// region and returns the value from before the add.
	FetchAdd(ctx context.Context, peer int, region RegionID, offset int, delta int32) (before uint32, err error)

	// AtomicSwap atomically replaces an 8-byte word at offset in peer's
	// region with newVal and returns the value from before the swap. Used
	// for the prefetch fulfiller's read-and-clear of a request word: it must
	// be a single atomic swap, not a separate load-then-store, or a request
	// posted between the load and the store would be lost.
	AtomicSwap(ctx context.Context, peer int, region RegionID, offset int, newVal uint64) (before uint64, err error)

	// Drain waits for all previously submitted operations from this peer to
	// complete, serialising release of any staging buffer they used.
	Drain(ctx context.Context) error

	// NotifyTest non-blockingly reports whether notifyID is currently set on
	// this peer.
	NotifyTest(ctx context.Context, notifyID uint64) (bool, error)
	// NotifyReset clears notifyID on this peer.
	NotifyReset(ctx context.Context, notifyID uint64) error
	// NotifyWait blocks until notifyID is set or timeout elapses.
	NotifyWait(ctx context.Context, notifyID uint64, timeout time.Duration) error

	// Barrier blocks until every peer has called Barrier.
	Barrier(ctx context.Context) error

	// Close releases the transport's resources.
	Close() error
}
