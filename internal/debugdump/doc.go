// Package debugdump implements a snapshot writer that serializes a peer's
// observed (table_id, row_id) -> metadata view to disk, atomically, using
// github.com/natefinch/atomic so a crash mid-write never leaves a
// half-written snapshot behind.
package debugdump
