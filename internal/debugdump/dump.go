package debugdump

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/storage"
)

// Entry is one observed slot: its tag plus the rank that reported it.
type Entry struct {
	Age     uint64 `json:"age"`
	RowID   uint64 `json:"row_id"`
	TableID uint64 `json:"table_id"`
	Rank    int    `json:"rank"`
}

// Dumper records metadata tags into a storage.Store, and can flush that
// store to disk. pkg/ssp calls Observe after every successful Write (with the
// tag just written, whichever rank owns the row) and for every prefetch
// request the fulfillment sweep services (with the tag of this peer's row);
// Flush runs once, at Terminate.
type Dumper struct {
	rank  int
	store storage.Store
	path  string
}

// New builds a Dumper for rank, backed by store, optionally persisting to
// path on Flush (path == "" disables on-disk persistence; the Store still
// holds the observations in memory for Snapshot).
func New(rank int, store storage.Store, path string) *Dumper {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return &Dumper{rank: rank, store: store, path: path}
}

func key(tableID, rowID uint64) string {
	return fmt.Sprintf("%d:%d", tableID, rowID)
}

// Observe records the tag currently held at a rows-region slot.
func (d *Dumper) Observe(tag slotlayout.MetadataTag) error {
	entry := Entry{Age: tag.Age, RowID: tag.RowID, TableID: tag.TableID, Rank: d.rank}
	buf, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return d.store.Put(key(tag.TableID, tag.RowID), buf)
}

// Snapshot returns every observed entry; Flush writes this list to disk.
func (d *Dumper) Snapshot() ([]Entry, error) {
	keys := d.store.List()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		raw, err := d.store.Get(k)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Flush writes the current snapshot to d.path atomically, so a reader never
// observes a partially written file. A no-op when path is empty.
func (d *Dumper) Flush() error {
	if d.path == "" {
		return nil
	}
	entries, err := d.Snapshot()
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(d.path, bytes.NewReader(buf))
}

// Stats exposes the backing store's key/byte counts.
func (d *Dumper) Stats() storage.StoreStats { return d.store.Stats() }
