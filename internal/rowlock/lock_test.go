package rowlock

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memWord is an in-memory Atomic used purely to exercise the acquire/release
// algorithms without any transport involved.
type memWord struct {
	v atomic.Uint32
}

func (w *memWord) CompareAndSwap(_ context.Context, oldVal, newVal uint32) (uint32, bool, error) {
	for {
		cur := w.v.Load()
		if cur != oldVal {
			return cur, false, nil
		}
		if w.v.CompareAndSwap(cur, newVal) {
			return cur, true, nil
		}
	}
}

func (w *memWord) FetchAdd(_ context.Context, delta int32) (uint32, error) {
	before := w.v.Add(uint32(delta)) - uint32(delta)
	return before, nil
}

func (w *memWord) Store(_ context.Context, val uint32) error {
	w.v.Store(val)
	return nil
}

func TestAcquireReleaseWrite(t *testing.T) {
	w := &memWord{}
	ctx := context.Background()

	require.NoError(t, AcquireWrite(ctx, w))
	assert.Equal(t, writerBit, w.v.Load())
	require.NoError(t, ReleaseWrite(ctx, w))
	assert.Equal(t, uint32(0), w.v.Load())
}

func TestAcquireReleaseReadMultiple(t *testing.T) {
	w := &memWord{}
	ctx := context.Background()

	require.NoError(t, AcquireRead(ctx, w))
	require.NoError(t, AcquireRead(ctx, w))
	require.NoError(t, AcquireRead(ctx, w))
	assert.Equal(t, uint32(3), w.v.Load())

	require.NoError(t, ReleaseRead(ctx, w))
	require.NoError(t, ReleaseRead(ctx, w))
	require.NoError(t, ReleaseRead(ctx, w))
	assert.Equal(t, uint32(0), w.v.Load())
}

func TestWriterExcludesReader(t *testing.T) {
	w := &memWord{}
	ctx := context.Background()
	require.NoError(t, AcquireWrite(ctx, w))

	done := make(chan struct{})
	go func() {
		require.NoError(t, AcquireRead(ctx, w))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reader acquired lock while writer held it")
	default:
	}

	require.NoError(t, ReleaseWrite(ctx, w))
	<-done
	assert.Equal(t, uint32(1), w.v.Load())
}

func TestCheckOverflow(t *testing.T) {
	require.NoError(t, CheckOverflow(4, 8))
	require.ErrorIs(t, CheckOverflow(1<<30, 4), ErrOverflow)
	require.Error(t, CheckOverflow(0, 4))
	require.Error(t, CheckOverflow(4, 0))
}
