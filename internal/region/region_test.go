package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/lazyssp/internal/placement"
	"github.com/dreamware/lazyssp/internal/slotlayout"
)

func TestSlotsRoundTripTagAndPayload(t *testing.T) {
	layout := slotlayout.New(true, 8, 3)
	slots := NewSlots(layout, 4, true)
	require.Equal(t, 4, slots.Count())

	slot := slots.Slot(2)
	tag := slotlayout.MetadataTag{Age: 7, RowID: 1, TableID: 0}
	layout.WriteTag(slot, tag)
	layout.WritePayload(slot, []byte("12345678"))

	got := layout.ReadTag(slot)
	assert.Equal(t, tag, got)
	assert.Equal(t, []byte("12345678"), layout.ReadPayload(slot))

	stats := slots.Stats(2)
	require.NotNil(t, stats)
	stats.Writes.Add(1)
	assert.Equal(t, uint64(1), slots.Stats(2).Writes.Load())
}

func TestCacheRegionHasNoStats(t *testing.T) {
	layout := slotlayout.New(false, 8, 0)
	cache := NewCacheRegion(layout, 2)
	assert.Nil(t, cache.Stats(0))
}

func TestInfoRegionMinAge(t *testing.T) {
	geom := placement.Geometry{PeerCount: 3, BlockSize: 2, TableAmount: 3, TableSize: 4}
	info := NewInfoRegion(0, geom, 12, true)
	for i := 0; i < 4; i++ {
		info.Clock.Tick()
	}
	assert.Equal(t, uint64(1), info.MinAge(2))
}
