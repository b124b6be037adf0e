package transport

import (
	"context"

	"github.com/dreamware/lazyssp/internal/rowlock"
)

// LockWord adapts a (Transport, peer, region, offset) address into a
// rowlock.Atomic so the lock algorithms of internal/rowlock can be driven
// over any transport without that package knowing about regions or peers.
type LockWord struct {
	T      Transport
	Peer   int
	Region RegionID
	Offset int
}

var _ rowlock.Atomic = LockWord{}

func (w LockWord) CompareAndSwap(ctx context.Context, oldVal, newVal uint32) (uint32, bool, error) {
	return w.T.CompareAndSwap(ctx, w.Peer, w.Region, w.Offset, oldVal, newVal)
}

func (w LockWord) FetchAdd(ctx context.Context, delta int32) (uint32, error) {
	return w.T.FetchAdd(ctx, w.Peer, w.Region, w.Offset, delta)
}

// Store writes the word unconditionally. This is not a local store: it is
// always issued through the transport, even when peer == T.Rank(), so the
// same code path releases local and remote authoritative locks alike.
// Callers that need the queue drained before reusing a staging buffer must
// call Drain themselves.
func (w LockWord) Store(ctx context.Context, val uint32) error {
	buf := []byte{byte(val), byte(val >> 8), byte(val >> 16), byte(val >> 24)}
	return w.T.Write(ctx, w.Peer, w.Region, w.Offset, buf)
}
