package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestRoundTrip(t *testing.T) {
	data, err := Marshal(sample{Name: "a", N: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a","n":2}`, string(data))

	got, err := Unmarshal[sample](data)
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "a", N: 2}, got)
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Unmarshal[sample](nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Unmarshal[sample]([]byte(" \n\t"))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Unmarshal[sample]([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestMarshal_Unsupported(t *testing.T) {
	_, err := Marshal(make(chan int))
	assert.Error(t, err)
}
