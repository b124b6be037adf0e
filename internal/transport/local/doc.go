// Package local implements transport.Transport in-process, over shared byte
// regions and real sync/atomic compare-and-swap/fetch-add, so that a full
// cluster of peers can run as goroutines in a single binary. It backs the
// unit and integration tests and "cmd/peer -mode=simulate".
//
// Follows the same locking discipline as internal/storage.MemoryStore (a
// mutex-protected map standing in for a remote store), generalized here to
// raw byte regions addressed by (peer, region, offset, length) instead of
// string keys.
package local
