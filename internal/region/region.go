package region

import (
	"sync/atomic"

	"github.com/dreamware/lazyssp/internal/age"
	"github.com/dreamware/lazyssp/internal/placement"
	"github.com/dreamware/lazyssp/internal/slotlayout"
)

// OperationStats tracks per-slot operation counts. Counters are
// monotonically increasing and updated atomically so the hot path never
// takes a lock just to record a metric.
type OperationStats struct {
	Reads      atomic.Uint64
	Writes     atomic.Uint64
	Fulfilled  atomic.Uint64
	Dropped    atomic.Uint64
}

// InfoRegion holds the per-peer scalar state every peer exposes to every
// other peer: rank, peer count, current age, table geometry, the scratch
// word used as the source of inline atomic writes to remote peers, and
// configuration bits.
//
// Scratch races are intentional: only the owning peer ever writes Scratch;
// remote peers only ever read it through the transport (e.g. to source the
// value of a remote write).
type InfoRegion struct {
	Rank        int
	PeerCount   int
	Geometry    placement.Geometry
	CacheSize   uint64
	OffsetSlack bool
	MaxThreads  atomic.Uint32
	Clock       age.Clock
	Scratch     atomic.Uint64
}

// NewInfoRegion constructs an InfoRegion for the given rank.
func NewInfoRegion(rank int, g placement.Geometry, cacheSize uint64, offsetSlack bool) *InfoRegion {
	info := &InfoRegion{
		Rank:        rank,
		PeerCount:   g.PeerCount,
		Geometry:    g,
		CacheSize:   cacheSize,
		OffsetSlack: offsetSlack,
	}
	info.MaxThreads.Store(1)
	return info
}

// MinAge computes the minimum acceptable row age for a read or prefetch
// issued from this peer right now.
func (info *InfoRegion) MinAge(slack uint64) uint64 {
	return age.ComputeMinAge(info.Clock.Current(), slack, info.OffsetSlack)
}

// Slots is a dense array of fixed-size byte slots sharing one Layout. It
// backs both the rows region (authoritative slots, one stats counter block
// per slot) and the cache region (no prefetch array, no per-slot stats).
type Slots struct {
	layout slotlayout.Layout
	buf    []byte
	count  int
	stats  []OperationStats
}

// NewSlots allocates count slots under layout. withStats controls whether
// per-slot OperationStats are tracked (true for the rows region, false for
// the cache region, which has no per-row identity of its own to attribute
// stats to beyond whatever currently occupies the slot).
func NewSlots(layout slotlayout.Layout, count int, withStats bool) *Slots {
	s := &Slots{
		layout: layout,
		buf:    make([]byte, layout.SlotSize()*count),
		count:  count,
	}
	if withStats {
		s.stats = make([]OperationStats, count)
	}
	return s
}

// Layout returns the slot layout shared by every slot in this array.
func (s *Slots) Layout() slotlayout.Layout { return s.layout }

// Count returns the number of slots.
func (s *Slots) Count() int { return s.count }

// Slot returns the raw byte buffer for slot i. The returned slice aliases
// the region's backing array; callers must serialise access themselves
// (typically via rowlock) before reading or writing it when the access is
// remote.
func (s *Slots) Slot(i int) []byte {
	sz := s.layout.SlotSize()
	return s.buf[i*sz : (i+1)*sz]
}

// Stats returns the operation-stats block for slot i, or nil if this array
// was created without per-slot stats.
func (s *Slots) Stats(i int) *OperationStats {
	if s.stats == nil {
		return nil
	}
	return &s.stats[i]
}

// RowsRegion is the authoritative shard of row slots a peer owns.
type RowsRegion struct {
	*Slots
}

// NewRowsRegion allocates the authoritative rows region for a peer owning
// rowCount rows, each a layout.SlotSize()-byte slot including its N
// prefetch-request words.
func NewRowsRegion(layout slotlayout.Layout, rowCount int) *RowsRegion {
	return &RowsRegion{Slots: NewSlots(layout, rowCount, true)}
}

// CacheRegion is the per-process cache of row slots.
type CacheRegion struct {
	*Slots
}

// NewCacheRegion allocates the cache region with cacheSize slots.
func NewCacheRegion(layout slotlayout.Layout, cacheSize int) *CacheRegion {
	return &CacheRegion{Slots: NewSlots(layout, cacheSize, false)}
}
