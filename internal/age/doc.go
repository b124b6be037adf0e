// Package age implements the staleness predicate and the monotone per-peer
// iteration counter shared by the read path, the prefetch requester and the
// clock/lifecycle operation.
package age
