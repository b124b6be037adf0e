// Package placement implements the block-striped placement map: a pure
// function mapping (table_id, row_id) to an owning rank and a local row
// offset, plus a Table that precomputes per-rank authoritative row counts
// for sizing each peer's rows region.
//
// Unlike a registry that tracks a dynamic, externally-assigned shard-to-node
// map under a mutex, placement here is a deterministic function of (peer
// count, block size, table geometry) with no mutable assignment state to
// protect — rebalancing and dynamic peer membership are out of scope. What
// survives of that registry shape is read-only: a concurrency-safe view used
// for debug introspection and region sizing.
package placement
