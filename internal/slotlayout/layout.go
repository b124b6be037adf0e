package slotlayout

import "encoding/binary"

// LockWordSize is the width, in bytes, of the per-slot atomic lock word when
// locking is enabled. See internal/rowlock.
const LockWordSize = 4

// AgeWordSize is the width, in bytes, of a single prefetch-request word
// (also the width used to encode the age field of a metadata tag).
const AgeWordSize = 8

// metadataSize is the fixed width of a MetadataTag: age, row_id, table_id,
// each a uint64.
const metadataSize = 3 * AgeWordSize

// MetadataTag is the (age, row_id, table_id) tuple co-located with every row
// payload, in both the authoritative store and the cache.
type MetadataTag struct {
	Age     uint64
	RowID   uint64
	TableID uint64
}

// Matches reports whether the tag identifies the given (rowID, tableID).
func (t MetadataTag) Matches(rowID, tableID uint64) bool {
	return t.RowID == rowID && t.TableID == tableID
}

// Layout describes the byte geometry of one slot kind (authoritative or
// cache) given whether locking is enabled, the payload size and, for
// authoritative slots, the number of requester ranks.
type Layout struct {
	// LockWidth is sizeof(lock word): LockWordSize when locking is enabled,
	// 0 when disabled.
	LockWidth int
	// PayloadSize is the row_size configured at initialise. This is "P".
	PayloadSize int
	// PrefetchWords is N (peer count) for authoritative slots, 0 for cache
	// slots. Each word is AgeWordSize bytes ("N*A").
	PrefetchWords int
}

// New builds a Layout. lockEnabled selects whether LockWidth is LockWordSize
// or 0.
func New(lockEnabled bool, payloadSize int, prefetchWords int) Layout {
	l := Layout{PayloadSize: payloadSize, PrefetchWords: prefetchWords}
	if lockEnabled {
		l.LockWidth = LockWordSize
	}
	return l
}

// MetadataOffset is the byte offset of the metadata tag within a slot: 0
// when locking is disabled, sizeof(lock word) when enabled.
func (l Layout) MetadataOffset() int { return l.LockWidth }

// PayloadOffset is the byte offset of the payload within a slot.
func (l Layout) PayloadOffset() int { return l.MetadataOffset() + metadataSize }

// PrefetchOffset is the byte offset of the prefetch-request array within an
// authoritative slot. Meaningless (and unused) for cache slots.
func (l Layout) PrefetchOffset() int { return l.PayloadOffset() + l.PayloadSize }

// PrefetchWordOffset returns the byte offset of requester rank r's
// prefetch-request word within the slot.
func (l Layout) PrefetchWordOffset(requesterRank int) int {
	return l.PrefetchOffset() + requesterRank*AgeWordSize
}

// SlotSize is the total size, in bytes, of one slot under this layout:
// lock word (L) + metadata (M) + payload (P) + N prefetch-request words (A).
func (l Layout) SlotSize() int {
	return l.PrefetchOffset() + l.PrefetchWords*AgeWordSize
}

// ReadTag decodes the metadata tag out of a slot buffer.
func (l Layout) ReadTag(slot []byte) MetadataTag {
	off := l.MetadataOffset()
	return MetadataTag{
		Age:     binary.LittleEndian.Uint64(slot[off : off+8]),
		RowID:   binary.LittleEndian.Uint64(slot[off+8 : off+16]),
		TableID: binary.LittleEndian.Uint64(slot[off+16 : off+24]),
	}
}

// WriteTag encodes the metadata tag into a slot buffer.
func (l Layout) WriteTag(slot []byte, tag MetadataTag) {
	off := l.MetadataOffset()
	binary.LittleEndian.PutUint64(slot[off:off+8], tag.Age)
	binary.LittleEndian.PutUint64(slot[off+8:off+16], tag.RowID)
	binary.LittleEndian.PutUint64(slot[off+16:off+24], tag.TableID)
}

// ReadPayload returns the payload bytes of a slot. The returned slice aliases
// the underlying buffer; callers that need a stable copy must clone it.
func (l Layout) ReadPayload(slot []byte) []byte {
	off := l.PayloadOffset()
	return slot[off : off+l.PayloadSize]
}

// WritePayload copies payload into the slot's payload region. len(payload)
// must equal l.PayloadSize.
func (l Layout) WritePayload(slot []byte, payload []byte) {
	off := l.PayloadOffset()
	copy(slot[off:off+l.PayloadSize], payload)
}

// ReadPrefetchWord reads requester rank r's pending minimum-age request.
func (l Layout) ReadPrefetchWord(slot []byte, requesterRank int) uint64 {
	off := l.PrefetchWordOffset(requesterRank)
	return binary.LittleEndian.Uint64(slot[off : off+8])
}

// WritePrefetchWord writes requester rank r's pending minimum-age request.
func (l Layout) WritePrefetchWord(slot []byte, requesterRank int, minAge uint64) {
	off := l.PrefetchWordOffset(requesterRank)
	binary.LittleEndian.PutUint64(slot[off:off+8], minAge)
}
