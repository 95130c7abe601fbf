package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaginatedResult(t *testing.T) {
	cases := []struct {
		name                string
		total, number, size int
		wantPages           int
		wantPrev, wantNext  bool
	}{
		{"empty", 0, 1, 10, 0, false, false},
		{"single page", 3, 1, 10, 1, false, false},
		{"exact fit", 20, 1, 10, 2, false, true},
		{"last partial", 21, 3, 10, 3, true, false},
		{"past the end", 5, 4, 2, 3, true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewPaginatedResult[int](nil, c.total, c.number, c.size)
			assert.Equal(t, c.wantPages, p.TotalPages)
			assert.Equal(t, c.wantPrev, p.HasPreviousPage)
			assert.Equal(t, c.wantNext, p.HasNextPage)
			assert.NotNil(t, p.Items)
		})
	}
}

func TestPaginatedResult_EmptyItemsSerializeAsArray(t *testing.T) {
	data, err := json.Marshal(NewPaginatedResult[TradeDto](nil, 0, 1, 10))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, PageOffset(1, 10))
	assert.Equal(t, 20, PageOffset(3, 10))
	assert.Equal(t, math.MaxInt, PageOffset(math.MaxInt, 10))
	assert.Equal(t, math.MaxInt, PageOffset(math.MaxInt/10+2, 10))
	assert.Equal(t, (math.MaxInt/10)*10, PageOffset(math.MaxInt/10+1, 10))
}
