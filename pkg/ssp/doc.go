// Package ssp implements a distributed bounded-staleness parameter cache
// for iterative, data-parallel computations (the Stale-Synchronous Parallel
// model): a fixed set of peers cooperatively store a two-dimensional
// collection of fixed-size rows, each peer writing the rows it owns and
// reading possibly-stale copies of rows owned by others, bounded by a
// caller-supplied slack.
//
// Cache is the process-level handle: New resolves geometry, allocates no
// memory of its own (all rows/cache/info storage lives behind the supplied
// transport.Transport), and exposes Write, Read, Prefetch, PrefetchAll,
// FulfillPrefetches, Clock, SetMaxThreads, GetInfo and Terminate.
package ssp
