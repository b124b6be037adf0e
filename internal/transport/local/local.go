package local

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/lazyssp/internal/transport"
)

type regionBuf struct {
	mu  sync.Mutex
	buf []byte
}

type peerState struct {
	info  regionBuf
	rows  regionBuf
	cache regionBuf

	notifyMu  sync.Mutex
	notifyCnd *sync.Cond
	notified  map[uint64]bool
}

func newPeerState(infoSize, rowsSize, cacheSize int) *peerState {
	p := &peerState{
		info:     regionBuf{buf: make([]byte, infoSize)},
		rows:     regionBuf{buf: make([]byte, rowsSize)},
		cache:    regionBuf{buf: make([]byte, cacheSize)},
		notified: make(map[uint64]bool),
	}
	p.notifyCnd = sync.NewCond(&p.notifyMu)
	return p
}

func (p *peerState) region(r transport.RegionID) (*regionBuf, error) {
	switch r {
	case transport.RegionInfo:
		return &p.info, nil
	case transport.RegionRows:
		return &p.rows, nil
	case transport.RegionCache:
		return &p.cache, nil
	default:
		return nil, fmt.Errorf("local: unknown region %d", r)
	}
}

// Cluster is the shared state backing every peer's Transport handle: one set
// of Info/Rows/Cache byte regions per peer, plus a simple cyclic barrier.
//
// A cyclic barrier is not available in golang.org/x/sync (which this module
// otherwise uses for errgroup-based fan-out); this one primitive is
// implemented directly over sync.Cond, in the manner of a textbook
// generation-counted barrier, because no library in the retrieval pack
// supplies one.
type Cluster struct {
	peers []*peerState

	barrierMu    sync.Mutex
	barrierCond  *sync.Cond
	barrierCount int
	barrierGen   int
}

// NewCluster allocates a Cluster for peerCount peers, each with the given
// region sizes (in bytes).
func NewCluster(peerCount, infoSize, rowsSize, cacheSize int) *Cluster {
	c := &Cluster{peers: make([]*peerState, peerCount)}
	for i := range c.peers {
		c.peers[i] = newPeerState(infoSize, rowsSize, cacheSize)
	}
	c.barrierCond = sync.NewCond(&c.barrierMu)
	return c
}

// Peer returns a transport.Transport bound to rank within this cluster.
func (c *Cluster) Peer(rank int) transport.Transport {
	return &Peer{cluster: c, rank: rank}
}

// Peer implements transport.Transport for one rank within a Cluster.
type Peer struct {
	cluster *Cluster
	rank    int
}

var _ transport.Transport = (*Peer)(nil)

func (p *Peer) Rank() int      { return p.rank }
func (p *Peer) PeerCount() int { return len(p.cluster.peers) }

func (p *Peer) target(peer int, region transport.RegionID) (*regionBuf, error) {
	if peer < 0 || peer >= len(p.cluster.peers) {
		return nil, fmt.Errorf("local: peer %d out of range", peer)
	}
	return p.cluster.peers[peer].region(region)
}

func (p *Peer) Read(_ context.Context, peer int, region transport.RegionID, offset, length int) ([]byte, error) {
	rb, err := p.target(peer, region)
	if err != nil {
		return nil, transport.Wrap("read", peer, err)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+length > len(rb.buf) {
		return nil, transport.Wrap("read", peer, fmt.Errorf("out of bounds read [%d:%d] of %d", offset, offset+length, len(rb.buf)))
	}
	out := make([]byte, length)
	copy(out, rb.buf[offset:offset+length])
	return out, nil
}

func (p *Peer) Write(_ context.Context, peer int, region transport.RegionID, offset int, data []byte) error {
	rb, err := p.target(peer, region)
	if err != nil {
		return transport.Wrap("write", peer, err)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+len(data) > len(rb.buf) {
		return transport.Wrap("write", peer, fmt.Errorf("out of bounds write [%d:%d] of %d", offset, offset+len(data), len(rb.buf)))
	}
	copy(rb.buf[offset:offset+len(data)], data)
	return nil
}

func (p *Peer) WriteNotify(ctx context.Context, peer int, region transport.RegionID, offset int, data []byte, notifyID uint64) error {
	if err := p.Write(ctx, peer, region, offset, data); err != nil {
		return err
	}
	ps := p.cluster.peers[peer]
	ps.notifyMu.Lock()
	ps.notified[notifyID] = true
	ps.notifyCnd.Broadcast()
	ps.notifyMu.Unlock()
	return nil
}

func (p *Peer) CompareAndSwap(_ context.Context, peer int, region transport.RegionID, offset int, oldVal, newVal uint32) (uint32, bool, error) {
	rb, err := p.target(peer, region)
	if err != nil {
		return 0, false, transport.Wrap("cas", peer, err)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+4 > len(rb.buf) {
		return 0, false, transport.Wrap("cas", peer, fmt.Errorf("out of bounds cas at %d of %d", offset, len(rb.buf)))
	}
	cur := binary.LittleEndian.Uint32(rb.buf[offset : offset+4])
	if cur != oldVal {
		return cur, false, nil
	}
	binary.LittleEndian.PutUint32(rb.buf[offset:offset+4], newVal)
	return cur, true, nil
}

func (p *Peer) FetchAdd(_ context.Context, peer int, region transport.RegionID, offset int, delta int32) (uint32, error) {
	rb, err := p.target(peer, region)
	if err != nil {
		return 0, transport.Wrap("fetch_add", peer, err)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+4 > len(rb.buf) {
		return 0, transport.Wrap("fetch_add", peer, fmt.Errorf("out of bounds fetch_add at %d of %d", offset, len(rb.buf)))
	}
	before := binary.LittleEndian.Uint32(rb.buf[offset : offset+4])
	binary.LittleEndian.PutUint32(rb.buf[offset:offset+4], uint32(int32(before)+delta))
	return before, nil
}

func (p *Peer) AtomicSwap(_ context.Context, peer int, region transport.RegionID, offset int, newVal uint64) (uint64, error) {
	rb, err := p.target(peer, region)
	if err != nil {
		return 0, transport.Wrap("atomic_swap", peer, err)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if offset < 0 || offset+8 > len(rb.buf) {
		return 0, transport.Wrap("atomic_swap", peer, fmt.Errorf("out of bounds atomic_swap at %d of %d", offset, len(rb.buf)))
	}
	before := binary.LittleEndian.Uint64(rb.buf[offset : offset+8])
	binary.LittleEndian.PutUint64(rb.buf[offset:offset+8], newVal)
	return before, nil
}

// Drain is a no-op: every operation above already completes synchronously
// against shared memory before returning.
func (p *Peer) Drain(context.Context) error { return nil }

func (p *Peer) NotifyTest(_ context.Context, notifyID uint64) (bool, error) {
	ps := p.cluster.peers[p.rank]
	ps.notifyMu.Lock()
	defer ps.notifyMu.Unlock()
	return ps.notified[notifyID], nil
}

func (p *Peer) NotifyReset(_ context.Context, notifyID uint64) error {
	ps := p.cluster.peers[p.rank]
	ps.notifyMu.Lock()
	defer ps.notifyMu.Unlock()
	delete(ps.notified, notifyID)
	return nil
}

func (p *Peer) NotifyWait(ctx context.Context, notifyID uint64, timeout time.Duration) error {
	ps := p.cluster.peers[p.rank]
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	const pollInterval = time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ps.notifyMu.Lock()
		ok := ps.notified[notifyID]
		ps.notifyMu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return transport.ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Barrier implements a classic generation-counted cyclic barrier: the last
// arriving peer bumps the generation and wakes everyone else.
func (p *Peer) Barrier(ctx context.Context) error {
	c := p.cluster
	c.barrierMu.Lock()
	gen := c.barrierGen
	c.barrierCount++
	if c.barrierCount == len(c.peers) {
		c.barrierCount = 0
		c.barrierGen++
		c.barrierCond.Broadcast()
		c.barrierMu.Unlock()
		return nil
	}
	for gen == c.barrierGen {
		c.barrierCond.Wait()
	}
	c.barrierMu.Unlock()
	return nil
}

func (p *Peer) Close() error { return nil }
