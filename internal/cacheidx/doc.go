// Package cacheidx implements the cache-slot index function:
// cache_index(row_id, table_id) = hash(row_id, table_id) mod cache_size. The
// two predefined hashes (row-major, column-major) and the ability to accept
// an arbitrary user-supplied pure function let a caller pick whichever
// locality pattern suits its access pattern without changing the cache
// lookup logic itself.
package cacheidx
