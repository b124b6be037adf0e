package placement

import "fmt"

// Geometry captures the immutable placement configuration shared by every
// peer: total peer count, block size and table geometry. All peers must
// agree on these values.
type Geometry struct {
	PeerCount   int
	BlockSize   uint64
	TableAmount uint64
	TableSize   uint64
}

// TotalRows is table_amount * table_size.
func (g Geometry) TotalRows() uint64 { return g.TableAmount * g.TableSize }

// Location is the result of placing a (table_id, row_id) pair: the owning
// rank and the row's offset within that rank's authoritative rows region.
type Location struct {
	Rank        int
	LocalOffset uint64
}

// Place computes the block round-robin owner and local offset for a
// (table_id, row_id) pair:
//
//	global_index = table_id*table_size + row_id
//	absBlock      = global_index div block_size
//	owner_rank    = absBlock mod N
//	offset_block  = absBlock div N
//	offset_inner  = global_index - absBlock*block_size
//	local_offset  = offset_block*block_size + offset_inner
//
// Place is a pure function: the same inputs always produce the same output.
func Place(g Geometry, tableID, rowID uint64) Location {
	globalIndex := tableID*g.TableSize + rowID
	absBlock := globalIndex / g.BlockSize
	ownerRank := int(absBlock % uint64(g.PeerCount))
	offsetBlock := absBlock / uint64(g.PeerCount)
	offsetInner := globalIndex - absBlock*g.BlockSize
	return Location{
		Rank:        ownerRank,
		LocalOffset: offsetBlock*g.BlockSize + offsetInner,
	}
}

// Validate checks the geometry is well formed before it is used to compute
// placements or size regions.
func (g Geometry) Validate() error {
	if g.PeerCount <= 0 {
		return fmt.Errorf("placement: peer count must be positive, got %d", g.PeerCount)
	}
	if g.BlockSize == 0 {
		return fmt.Errorf("placement: block size must be positive")
	}
	if g.TableAmount == 0 || g.TableSize == 0 {
		return fmt.Errorf("placement: table_amount and table_size must be positive")
	}
	return nil
}

// RowCount returns the number of authoritative rows owned by rank, i.e. the
// rows of the whole blocks it owns plus, when the total row count is not a
// multiple of block_size, the rows of the partial tail block, which belongs
// only to the rank that block index fullBlocks maps to.
func (g Geometry) RowCount(rank int) uint64 {
	total := g.TotalRows()
	fullBlocks := total / g.BlockSize
	tail := total % g.BlockSize

	n := uint64(g.PeerCount)
	rowsFromFullBlocks := blocksForRank(fullBlocks, n, rank) * g.BlockSize

	var rowsFromTail uint64
	if tail > 0 && fullBlocks%n == uint64(rank) {
		rowsFromTail = tail
	}
	return rowsFromFullBlocks + rowsFromTail
}

// blocksForRank counts how many of the numBlocks blocks indexed [0,numBlocks)
// are assigned to rank under round-robin (block b -> rank b mod n).
func blocksForRank(numBlocks, n uint64, rank int) uint64 {
	r := uint64(rank)
	if numBlocks == 0 {
		return 0
	}
	count := numBlocks / n
	if r < numBlocks%n {
		count++
	}
	return count
}

// Table is a read-only, precomputed view of the placement map: per-rank
// authoritative row counts, used to size each peer's rows region at
// initialise and exposed for debug introspection. It holds no mutable
// assignment state — everything is derived from Geometry, which is fixed for
// the cluster's lifetime.
type Table struct {
	geometry Geometry
}

// NewTable validates geometry and returns a Table over it.
func NewTable(g Geometry) (*Table, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Table{geometry: g}, nil
}

// Geometry returns the underlying geometry.
func (t *Table) Geometry() Geometry { return t.geometry }

// Place delegates to the package-level Place function using this table's
// geometry.
func (t *Table) Place(tableID, rowID uint64) Location {
	return Place(t.geometry, tableID, rowID)
}

// RowCountForRank returns the number of authoritative rows rank owns.
func (t *Table) RowCountForRank(rank int) uint64 {
	return t.geometry.RowCount(rank)
}

// RowCounts returns the authoritative row count for every rank, summing to
// TotalRows().
func (t *Table) RowCounts() []uint64 {
	counts := make([]uint64, t.geometry.PeerCount)
	for r := range counts {
		counts[r] = t.geometry.RowCount(r)
	}
	return counts
}
