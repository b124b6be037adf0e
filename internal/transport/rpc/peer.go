package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamware/lazyssp/internal/transport"
)

// Addresses maps peer rank to its base HTTP address ("http://host:port").
type Addresses []string

// Peer implements transport.Transport for one rank: operations addressed at
// its own rank are served directly from the local Server (no network hop);
// operations addressed at another rank are sent over HTTP to that peer's
// server, mirroring the read/write-with-notification shape of internal
// /cluster's client calls but generalized from shard RPCs to raw region
// operations.
type Peer struct {
	rank  int
	addrs Addresses
	local *Server
}

// NewPeer builds a Transport for rank, backed by its own Server (for
// locally-addressed operations) and the full address table (for remote
// ones). srv must be the Server this peer itself runs and serves over HTTP.
func NewPeer(rank int, addrs Addresses, srv *Server) *Peer {
	return &Peer{rank: rank, addrs: addrs, local: srv}
}

func (p *Peer) Rank() int      { return p.rank }
func (p *Peer) PeerCount() int { return len(p.addrs) }

// Addresses returns the full peer address table, satisfying pkg/ssp's
// addressable interface so it can run a pre-barrier reachability sweep.
func (p *Peer) Addresses() []string { return append([]string(nil), p.addrs...) }

func (p *Peer) addr(peer int) (string, error) {
	if peer < 0 || peer >= len(p.addrs) {
		return "", fmt.Errorf("rpc: peer %d out of range [0,%d)", peer, len(p.addrs))
	}
	return p.addrs[peer], nil
}

func (p *Peer) Read(ctx context.Context, peer int, region transport.RegionID, offset, length int) ([]byte, error) {
	if peer == p.rank {
		rb := p.local.region(region)
		if rb == nil {
			return nil, errUnknownRegion
		}
		rb.mu.Lock()
		defer rb.mu.Unlock()
		if offset < 0 || offset+length > len(rb.buf) {
			return nil, errOutOfBounds
		}
		out := make([]byte, length)
		copy(out, rb.buf[offset:offset+length])
		return out, nil
	}
	base, err := p.addr(peer)
	if err != nil {
		return nil, err
	}
	var resp readResponse
	if err := postJSON(ctx, base+"/region/read", readRequest{Region: region, Offset: offset, Length: length}, &resp); err != nil {
		return nil, transport.Wrap("Read", peer, err)
	}
	return resp.Data, nil
}

func (p *Peer) Write(ctx context.Context, peer int, region transport.RegionID, offset int, data []byte) error {
	return p.write(ctx, peer, region, offset, data, 0, false)
}

func (p *Peer) WriteNotify(ctx context.Context, peer int, region transport.RegionID, offset int, data []byte, notifyID uint64) error {
	return p.write(ctx, peer, region, offset, data, notifyID, true)
}

func (p *Peer) write(ctx context.Context, peer int, region transport.RegionID, offset int, data []byte, notifyID uint64, notify bool) error {
	if peer == p.rank {
		rb := p.local.region(region)
		if rb == nil {
			return errUnknownRegion
		}
		rb.mu.Lock()
		if offset < 0 || offset+len(data) > len(rb.buf) {
			rb.mu.Unlock()
			return errOutOfBounds
		}
		copy(rb.buf[offset:offset+len(data)], data)
		rb.mu.Unlock()
		if notify {
			p.local.notifyMu.Lock()
			p.local.notified[notifyID] = true
			p.local.notifyMu.Unlock()
		}
		return nil
	}
	base, err := p.addr(peer)
	if err != nil {
		return err
	}
	req := writeRequest{Region: region, Offset: offset, Data: data, NotifyID: notifyID, Notify: notify}
	if err := postJSON(ctx, base+"/region/write", req, nil); err != nil {
		return transport.Wrap("Write", peer, err)
	}
	return nil
}

func (p *Peer) CompareAndSwap(ctx context.Context, peer int, region transport.RegionID, offset int, oldVal, newVal uint32) (uint32, bool, error) {
	if peer == p.rank {
		return p.local.casLocal(region, offset, oldVal, newVal)
	}
	base, err := p.addr(peer)
	if err != nil {
		return 0, false, err
	}
	var resp casResponse
	req := casRequest{Region: region, Offset: offset, Old: oldVal, New: newVal}
	if err := postJSON(ctx, base+"/region/cas", req, &resp); err != nil {
		return 0, false, transport.Wrap("CompareAndSwap", peer, err)
	}
	return resp.Observed, resp.Swapped, nil
}

func (p *Peer) FetchAdd(ctx context.Context, peer int, region transport.RegionID, offset int, delta int32) (uint32, error) {
	if peer == p.rank {
		return p.local.fetchAddLocal(region, offset, delta)
	}
	base, err := p.addr(peer)
	if err != nil {
		return 0, err
	}
	var resp fetchAddResponse
	req := fetchAddRequest{Region: region, Offset: offset, Delta: delta}
	if err := postJSON(ctx, base+"/region/fetch_add", req, &resp); err != nil {
		return 0, transport.Wrap("FetchAdd", peer, err)
	}
	return resp.Before, nil
}

func (p *Peer) AtomicSwap(ctx context.Context, peer int, region transport.RegionID, offset int, newVal uint64) (uint64, error) {
	if peer == p.rank {
		return p.local.atomicSwapLocal(region, offset, newVal)
	}
	base, err := p.addr(peer)
	if err != nil {
		return 0, err
	}
	var resp atomicSwapResponse
	req := atomicSwapRequest{Region: region, Offset: offset, New: newVal}
	if err := postJSON(ctx, base+"/region/atomic_swap", req, &resp); err != nil {
		return 0, transport.Wrap("AtomicSwap", peer, err)
	}
	return resp.Before, nil
}

// Drain is a no-op: every Write above is synchronous over HTTP (or a direct
// local mutation), so there is never an outstanding queue to flush.
func (p *Peer) Drain(ctx context.Context) error { return nil }

func (p *Peer) NotifyTest(ctx context.Context, notifyID uint64) (bool, error) {
	p.local.notifyMu.Lock()
	set := p.local.notified[notifyID]
	p.local.notifyMu.Unlock()
	return set, nil
}

func (p *Peer) NotifyReset(ctx context.Context, notifyID uint64) error {
	p.local.notifyMu.Lock()
	delete(p.local.notified, notifyID)
	p.local.notifyMu.Unlock()
	return nil
}

func (p *Peer) NotifyWait(ctx context.Context, notifyID uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		p.local.notifyMu.Lock()
		set := p.local.notified[notifyID]
		p.local.notifyMu.Unlock()
		if set {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return transport.ErrTimeout
			}
		}
	}
}

// Barrier posts a single arrival to the rendezvous peer (rank 0), which
// centrally counts arrivals and releases every caller once all PeerCount
// peers have arrived. A true leaderless distributed barrier belongs to the
// transport this package is allowed to leave out of core scope; rank 0
// acting as rendezvous is the lightweight ambient substitute.
func (p *Peer) Barrier(ctx context.Context) error {
	const rendezvous = 0
	if p.rank == rendezvous {
		if err := p.local.arriveLocal(ctx); err != nil {
			return transport.Wrap("Barrier", p.rank, err)
		}
		return nil
	}
	base, err := p.addr(rendezvous)
	if err != nil {
		return err
	}
	if err := postJSON(ctx, base+"/barrier/arrive", barrierArriveRequest{Rank: p.rank}, nil); err != nil {
		return transport.Wrap("Barrier", p.rank, err)
	}
	return nil
}

func (p *Peer) Close() error { return nil }
