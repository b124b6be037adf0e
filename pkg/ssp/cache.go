package ssp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreamware/lazyssp/internal/age"
	"github.com/dreamware/lazyssp/internal/cacheidx"
	"github.com/dreamware/lazyssp/internal/debugdump"
	"github.com/dreamware/lazyssp/internal/health"
	"github.com/dreamware/lazyssp/internal/placement"
	"github.com/dreamware/lazyssp/internal/region"
	"github.com/dreamware/lazyssp/internal/rowlock"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport"
)

// Cache is the process-level peer handle: one
// instance per peer, symmetric with every other peer's instance. It owns no
// byte storage itself — every row, cache slot and lock word is addressed
// through the supplied transport.Transport, even when the address happens
// to be this peer's own rank.
type Cache struct {
	tr   transport.Transport
	rank int
	n    int

	geometry    placement.Geometry
	placement   *placement.Table
	hash        cacheidx.Hash
	cacheSize   uint64
	offsetSlack bool

	rowsLayout  slotlayout.Layout
	cacheLayout slotlayout.Layout

	info *region.InfoRegion

	metrics metricsSink
	log     *zap.Logger
	dumper  *debugdump.Dumper
	health  *health.Monitor
}

// New resolves geometry (applying any SizeDeterminer left from zero
// explicit sizes), validates the max_threads/peer-count overflow bound, and
// returns a Cache ready for Write/Read/Prefetch once Clock has been called
// at least once. It performs initialise's barrier before returning.
func New(ctx context.Context, tableAmount, tableSize, rowSize uint64, tr transport.Transport, opts ...Option) (*Cache, error) {
	if tr == nil {
		return nil, newErr(KindInvalidArgument, "transport must not be nil")
	}
	cfg := applyOptions(opts)

	n := tr.PeerCount()
	if n == 0 {
		return nil, newErr(KindInvalidArgument, "peer count must be >= 1")
	}

	tableAmount, err := resolveSize(tableAmount, cfg.tableAmountFn)
	if err != nil {
		return nil, err
	}
	tableSize, err = resolveSize(tableSize, cfg.tableSizeFn)
	if err != nil {
		return nil, err
	}
	rowSize, err = resolveSize(rowSize, cfg.rowSizeFn)
	if err != nil {
		return nil, err
	}

	blockSize := cfg.blockSize
	if blockSize == 0 {
		blockSize = tableSize // whole tables per peer by default
	}

	geometry := placement.Geometry{
		PeerCount:   n,
		BlockSize:   blockSize,
		TableAmount: tableAmount,
		TableSize:   tableSize,
	}
	table, err := placement.NewTable(geometry)
	if err != nil {
		return nil, wrapErr(KindInvalidArgument, "invalid geometry", err)
	}

	cacheSize := cfg.cacheSize
	if cacheSize == 0 {
		cacheSize = tableSize // row-per-table default sizing
	}

	h := cfg.hash
	if h == nil {
		h = cacheidx.RowMajor(tableSize)
	}

	if err := rowlock.CheckOverflow(cfg.maxThreads, n); err != nil {
		return nil, wrapErr(KindResourceOverflow, "max_threads * peer_count overflows the lock word", err)
	}

	rank := tr.Rank()
	info := region.NewInfoRegion(rank, geometry, cacheSize, cfg.offsetSlack)
	info.MaxThreads.Store(uint32(cfg.maxThreads))

	rowsLayout := slotlayout.New(true, int(rowSize), n)
	cacheLayout := slotlayout.New(true, int(rowSize), 0)

	var dumper *debugdump.Dumper
	if cfg.outputCreator != nil {
		path := cfg.outputCreator(rank)
		dumper = debugdump.New(rank, nil, path)
	}

	c := &Cache{
		tr:          tr,
		rank:        rank,
		n:           n,
		geometry:    geometry,
		placement:   table,
		hash:        h,
		cacheSize:   cacheSize,
		offsetSlack: cfg.offsetSlack,
		rowsLayout:  rowsLayout,
		cacheLayout: cacheLayout,
		info:        info,
		metrics:     newMetricsSink(cfg.registry),
		log:         cfg.logger,
		dumper:      dumper,
		health:      health.NewMonitor(cfg.logger),
	}

	if addrs := addressesOf(tr); len(addrs) == n {
		if err := c.health.Sweep(ctx, rank, addrs); err != nil {
			c.log.Warn("pre-barrier health sweep found an unreachable peer", zap.Error(err))
		}
	}

	if err := tr.Barrier(ctx); err != nil {
		return nil, wrapErr(KindTransport, "initialise barrier failed", err)
	}

	c.log.Info("ssp cache initialised",
		zap.Int("rank", rank),
		zap.Int("peer_count", n),
		zap.Uint64("table_amount", tableAmount),
		zap.Uint64("table_size", tableSize),
		zap.Uint64("row_size", rowSize),
		zap.Uint64("block_size", blockSize),
		zap.Uint64("cache_size", cacheSize),
	)

	return c, nil
}

// addressable is implemented by transports that can report their peer
// address table, so Cache can run a pre-barrier health sweep. Transports
// that don't implement it (e.g. the local in-process transport) simply skip
// the sweep — a goroutine-addressed transport has no unreachable peers.
type addressable interface {
	Addresses() []string
}

func addressesOf(tr transport.Transport) []string {
	a, ok := tr.(addressable)
	if !ok {
		return nil
	}
	return a.Addresses()
}

// GetInfo returns this peer's info record (rank, peer count, geometry,
// cache size, offset-slack flag, current age, configured max_threads).
func (c *Cache) GetInfo() *region.InfoRegion { return c.info }

// SetMaxThreads validates and updates the per-process concurrency bound
// used by the lock word's overflow-safety check.
func (c *Cache) SetMaxThreads(maxThreads uint) error {
	if maxThreads == 0 {
		return newErr(KindInvalidArgument, "max_threads must be > 0")
	}
	if err := rowlock.CheckOverflow(maxThreads, c.n); err != nil {
		return wrapErr(KindResourceOverflow, "max_threads * peer_count overflows the lock word", err)
	}
	c.info.MaxThreads.Store(uint32(maxThreads))
	return nil
}

// Clock increments this peer's local age by one. It has no cross-peer
// effect: ages drift up to slack+offset apart across peers by design.
func (c *Cache) Clock() {
	c.info.Clock.Tick()
}

// currentAge returns the current local age, failing with not-initialised
// if Clock has never been called (age == 0), the read/prefetch
// precondition.
func (c *Cache) currentAge() (uint64, error) {
	cur := c.info.Clock.Current()
	if cur == 0 {
		return 0, ErrNotInitialised
	}
	return cur, nil
}

func (c *Cache) minAge(slack uint64) (uint64, error) {
	cur, err := c.currentAge()
	if err != nil {
		return 0, err
	}
	return age.ComputeMinAge(cur, slack, c.offsetSlack), nil
}

// Terminate drains the transport queue, waits at a final barrier, flushes
// any configured debug dump, and releases the transport.
func (c *Cache) Terminate(ctx context.Context) error {
	if err := c.tr.Drain(ctx); err != nil {
		return wrapErr(KindTransport, "terminate drain failed", err)
	}
	if addrs := addressesOf(c.tr); len(addrs) == c.n {
		if err := c.health.Sweep(ctx, c.rank, addrs); err != nil {
			c.log.Warn("pre-terminate health sweep found an unreachable peer", zap.Error(err))
		}
	}
	if err := c.tr.Barrier(ctx); err != nil {
		return wrapErr(KindTransport, "terminate barrier failed", err)
	}
	if c.dumper != nil {
		if err := c.dumper.Flush(); err != nil {
			c.log.Warn("debug dump flush failed", zap.Error(err))
		}
	}
	if err := c.tr.Close(); err != nil {
		return wrapErr(KindTransport, "transport close failed", err)
	}
	c.log.Info("ssp cache terminated", zap.Int("rank", c.rank))
	return nil
}

func (c *Cache) validateIDs(rowID, tableID uint64) error {
	if tableID >= c.geometry.TableAmount {
		return newErr(KindInvalidArgument, fmt.Sprintf("table_id %d out of range [0,%d)", tableID, c.geometry.TableAmount))
	}
	if rowID >= c.geometry.TableSize {
		return newErr(KindInvalidArgument, fmt.Sprintf("row_id %d out of range [0,%d)", rowID, c.geometry.TableSize))
	}
	return nil
}

// observe feeds a just-written or just-read tag into the debug dumper, if
// one is configured. A failure here never fails the calling operation — the
// dump is an operational aid, not part of the write/read contract — but it
// is logged so a broken dump target doesn't fail silently forever.
func (c *Cache) observe(tag slotlayout.MetadataTag) {
	if c.dumper == nil {
		return
	}
	if err := c.dumper.Observe(tag); err != nil {
		c.log.Warn("debug dump observe failed", zap.Error(err))
	}
}

func (c *Cache) cacheSlotOffset(rowID, tableID uint64) int {
	idx := cacheidx.Index(c.hash, rowID, tableID, c.cacheSize)
	return int(idx) * c.cacheLayout.SlotSize()
}
