package age

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMinAge(t *testing.T) {
	cases := []struct {
		name        string
		current     uint64
		slack       uint64
		offsetSlack bool
		want        uint64
	}{
		{"below threshold with offset", 5, 10, true, 1},
		{"exactly threshold with offset", 11, 10, true, 1},
		{"above threshold with offset", 7, 1, true, 5},
		{"above threshold without offset", 6, 1, false, 5},
		{"zero slack no offset accepts current", 5, 0, false, 5},
		{"scenario 2: age7 slack1 offset", 7, 1, true, 5},
		{"scenario 3: age8 slack1 offset", 8, 1, true, 6},
		{"scenario 4: age4 slack2 offset", 4, 2, true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeMinAge(tc.current, tc.slack, tc.offsetSlack)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClock(t *testing.T) {
	var c Clock
	assert.False(t, c.Initialised())
	assert.Equal(t, uint64(0), c.Current())

	for i := 1; i <= 5; i++ {
		assert.Equal(t, uint64(i), c.Tick())
	}
	assert.True(t, c.Initialised())
	assert.Equal(t, uint64(5), c.Current())
}
