package cacheidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowMajor(t *testing.T) {
	h := RowMajor(4)
	assert.Equal(t, uint64(3), h(3, 0))
	assert.Equal(t, uint64(7), h(3, 1))
}

func TestColumnMajor(t *testing.T) {
	h := ColumnMajor(3)
	assert.Equal(t, uint64(1), h(0, 1))
	assert.Equal(t, uint64(4), h(1, 1))
}

func TestIndexWrapsModuloCacheSize(t *testing.T) {
	h := RowMajor(4)
	assert.Equal(t, uint64(7)%12, Index(h, 3, 1, 12))
}

func TestCollisionIsPossible(t *testing.T) {
	// Two distinct (table,row) pairs may legitimately hash to the same slot;
	// the cache resolves this by overwrite, not by detecting it here.
	h := RowMajor(4)
	a := Index(h, 0, 0, 1)
	b := Index(h, 1, 0, 1)
	assert.Equal(t, a, b)
}
