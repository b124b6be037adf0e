package cacheidx

// Hash computes a cache key from a (row_id, table_id) pair. Implementations
// must be pure: same inputs always produce the same output, and the function
// must not observe or mutate external state.
type Hash func(rowID, tableID uint64) uint64

// RowMajor hashes by table, grouping a table's own rows into adjacent cache
// slots: table_size * table_id + row_id. tableSize is captured at
// configuration time.
func RowMajor(tableSize uint64) Hash {
	return func(rowID, tableID uint64) uint64 {
		return tableSize*tableID + rowID
	}
}

// ColumnMajor hashes by row, grouping every table's copy of a given row into
// adjacent cache slots: table_amount * row_id + table_id. tableAmount is
// captured at configuration time.
func ColumnMajor(tableAmount uint64) Hash {
	return func(rowID, tableID uint64) uint64 {
		return tableAmount*rowID + tableID
	}
}

// Index maps a Hash's output into a cache slot. cacheSize must be positive.
func Index(h Hash, rowID, tableID, cacheSize uint64) uint64 {
	return h(rowID, tableID) % cacheSize
}
