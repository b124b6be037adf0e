package rowlock

import (
	"context"
	"errors"
)

// writerBit is the high bit of the lock word, set while a writer holds it.
const writerBit uint32 = 1 << 31

// MaxReaderCount is the largest reader count representable in the remaining
// bits of the lock word.
const MaxReaderCount = writerBit - 1

// ErrOverflow is returned by CheckOverflow when max_threads * peerCount would
// not fit in the reader-count bits of the lock word.
var ErrOverflow = errors.New("rowlock: max_threads * peer_count exceeds reader-count capacity")

// CheckOverflow validates that the read-lock counter cannot overflow given
// maxThreads concurrent callers per peer across peerCount peers.
func CheckOverflow(maxThreads uint, peerCount int) error {
	if maxThreads == 0 {
		return errors.New("rowlock: max_threads must be positive")
	}
	if peerCount <= 0 {
		return errors.New("rowlock: peer count must be positive")
	}
	if uint64(maxThreads)*uint64(peerCount) > uint64(MaxReaderCount) {
		return ErrOverflow
	}
	return nil
}

// Atomic is the minimal primitive the lock is built from: a single-word CAS
// and fetch-add over the word's current location, which may be local memory
// (internal/transport/local) or a remote slot reached through the one-sided
// transport (internal/transport/rpc). Acquiring for read/write and releasing
// are expressed purely in terms of this interface so the lock algorithm does
// not care which transport backs it.
type Atomic interface {
	// CompareAndSwap attempts to set the word to newVal iff its current
	// value equals oldVal. It returns the value observed at the time of the
	// attempt (equal to oldVal iff the swap succeeded) and whether it swapped.
	CompareAndSwap(ctx context.Context, oldVal, newVal uint32) (observed uint32, swapped bool, err error)
	// FetchAdd adds delta to the word and returns the value before the add.
	FetchAdd(ctx context.Context, delta int32) (before uint32, err error)
	// Store writes val unconditionally. Used only for write-release, which is
	// not a local store: transport.LockWord issues it as a transport write,
	// and draining the queue afterwards is left to the caller.
	Store(ctx context.Context, val uint32) error
}

// AcquireRead runs the three-step read-acquire algorithm, retrying until
// the lock is held for read.
func AcquireRead(ctx context.Context, a Atomic) error {
	for {
		observed, swapped, err := a.CompareAndSwap(ctx, 0, 1)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		if observed&writerBit != 0 {
			// Writer present: retry the CAS (step 2).
			continue
		}
		// W=0, R>0: fetch-add(+1) and check nobody raced a writer in first.
		before, err := a.FetchAdd(ctx, 1)
		if err != nil {
			return err
		}
		if before&writerBit != 0 {
			// A writer raced in between the CAS failure and the fetch-add;
			// undo and retry from the top.
			if _, err := a.FetchAdd(ctx, -1); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

// ReleaseRead releases a read hold: fetch-add(-1).
func ReleaseRead(ctx context.Context, a Atomic) error {
	_, err := a.FetchAdd(ctx, -1)
	return err
}

// AcquireWrite acquires the write lock: CAS(0 -> W), retrying while the
// observed value is nonzero.
func AcquireWrite(ctx context.Context, a Atomic) error {
	for {
		_, swapped, err := a.CompareAndSwap(ctx, 0, writerBit)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
}

// ReleaseWrite releases the write lock: write 0 to the lock word. Callers
// on the rpc transport must drain the queue afterward to serialise against
// the subsequent operation.
func ReleaseWrite(ctx context.Context, a Atomic) error {
	return a.Store(ctx, 0)
}
