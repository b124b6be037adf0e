// Package transport defines the one-sided communication substrate the core
// cache logic treats as an external collaborator: segment allocation,
// queues, notifications and barriers are out of the core's scope, and only
// the interface below is specified.
//
// Two implementations live in subpackages: internal/transport/local runs all
// peers as goroutines in one process over shared memory (used by tests and
// by "cmd/peer -mode=simulate"), and internal/transport/rpc runs each peer as
// an independent HTTP server, which is how a real multi-process deployment
// of this module is expected to communicate.
package transport
