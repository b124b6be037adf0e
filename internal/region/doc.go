// Package region implements the three logical memory regions that every
// peer exposes to every other peer through the transport: the info region
// (per-peer scalars and the scratch word), the rows region (the
// authoritative shard of row slots) and the cache region (the per-process
// cache of row slots).
//
// There is no pluggable storage backend here: the regions are fixed-layout
// byte buffers, and there is no migration state machine, since dynamic peer
// membership is out of scope. Per-slot atomic operation counters are kept
// for rows-region Slots and read through Slots.Stats; they are not exported
// to Prometheus (pkg/ssp/metrics.go's counters are labeled by rank only).
package region
