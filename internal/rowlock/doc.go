// Package rowlock implements the per-row reader/writer lock: a single
// atomic word co-located with every slot, high bit W for "writer present",
// remaining bits R for the reader count.
//
// Acquisition and release are expressed as bounded-by-condition retry loops
// rather than unstructured jumps.
package rowlock
