// Package slotlayout computes the byte layout shared by every authoritative
// row slot and every cache slot, and provides a typed accessor over a raw
// byte buffer so the rest of the core never does its own pointer arithmetic.
//
// Layout, in order, for an authoritative slot:
//
//	[lock word (L)] [metadata tag (M)] [payload (P)] [prefetch words (N*A)]
//
// A cache slot is the same prefix without the trailing prefetch array:
//
//	[lock word (L)] [metadata tag (M)] [payload (P)]
//
// L is zero when locking is disabled (see internal/rowlock), otherwise it is
// the width of the lock word. M is fixed: three uint64 fields (age, row_id,
// table_id). A is the width of a single prefetch-request word.
package slotlayout
