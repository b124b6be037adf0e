// Package storage provides a small in-memory key-value Store used for
// debug introspection of a peer's cache contents. It sits entirely off the
// read/write hot path: the authoritative data for a running peer lives in
// internal/region's byte buffers, never here. internal/debugdump uses a
// Store as the backing map for its (table_id,row_id) -> metadata
// observations, which it flushes to disk; the /info endpoint does not
// serve them.
package storage
