package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPlacementLaw checks a known example: N=3, table_size=4, block_size=2,
// global index 7 (table_id=1,row_id=3) must place at (rank=0, local_offset=3).
func TestPlacementLaw(t *testing.T) {
	g := Geometry{PeerCount: 3, BlockSize: 2, TableAmount: 2, TableSize: 4}
	loc := Place(g, 1, 3)
	assert.Equal(t, 0, loc.Rank)
	assert.Equal(t, uint64(3), loc.LocalOffset)
}

func TestBlockSizeOneStripesEveryRowToDifferentOwner(t *testing.T) {
	g := Geometry{PeerCount: 4, BlockSize: 1, TableAmount: 1, TableSize: 8}
	for row := uint64(0); row < 8; row++ {
		loc := Place(g, 0, row)
		assert.Equal(t, int(row%4), loc.Rank)
	}
}

func TestBlockSizeTableSizeGivesWholeTablesPerOwner(t *testing.T) {
	g := Geometry{PeerCount: 3, BlockSize: 4, TableAmount: 3, TableSize: 4}
	for table := uint64(0); table < 3; table++ {
		first := Place(g, table, 0)
		for row := uint64(1); row < 4; row++ {
			loc := Place(g, table, row)
			assert.Equal(t, first.Rank, loc.Rank, "table %d should be on one owner", table)
		}
	}
}

func TestRowCountsSumToTotal(t *testing.T) {
	cases := []Geometry{
		{PeerCount: 3, BlockSize: 2, TableAmount: 2, TableSize: 4},
		{PeerCount: 3, BlockSize: 4, TableAmount: 3, TableSize: 4},
		{PeerCount: 4, BlockSize: 1, TableAmount: 1, TableSize: 8},
		{PeerCount: 5, BlockSize: 3, TableAmount: 7, TableSize: 11},
	}
	for _, g := range cases {
		table, err := NewTable(g)
		require.NoError(t, err)
		var sum uint64
		for _, c := range table.RowCounts() {
			sum += c
		}
		assert.Equal(t, g.TotalRows(), sum)
	}
}

// TestEverySlotIsUniqueAndAccountedFor checks that every (table_id,row_id)
// maps to a unique local slot on a unique rank.
func TestEverySlotIsUniqueAndAccountedFor(t *testing.T) {
	g := Geometry{PeerCount: 3, BlockSize: 2, TableAmount: 3, TableSize: 4}
	seen := make(map[[2]uint64]bool) // (rank, local_offset) -> seen
	for table := uint64(0); table < g.TableAmount; table++ {
		for row := uint64(0); row < g.TableSize; row++ {
			loc := Place(g, table, row)
			key := [2]uint64{uint64(loc.Rank), loc.LocalOffset}
			require.False(t, seen[key], "duplicate slot for table=%d row=%d", table, row)
			seen[key] = true
		}
	}
	assert.Equal(t, int(g.TotalRows()), len(seen))
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	require.Error(t, (Geometry{}).Validate())
	require.Error(t, (Geometry{PeerCount: 1, BlockSize: 0, TableAmount: 1, TableSize: 1}).Validate())
	require.NoError(t, (Geometry{PeerCount: 1, BlockSize: 1, TableAmount: 1, TableSize: 1}).Validate())
}
