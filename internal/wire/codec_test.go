package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

func TestUint64CodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := wire.Uint64Codec{}
	c.Encode(&buf, 424242)
	require.Equal(t, 8, buf.Len())

	got, err := c.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint64(424242), got)
}

func TestFloat64CodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := wire.Float64Codec{}
	c.Encode(&buf, 0.84999999)

	got, err := c.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.InDelta(t, 0.84999999, got, 1e-12)
}

func TestVertexPathCodecRoundTripEmptyAndFull(t *testing.T) {
	c := wire.VertexPathCodec{}
	cases := []wire.Walk{
		{ID: 7, Start: 3, Path: []bsptypes.VertexId{}},
		{ID: 1<<32 | 2, Start: 9, Path: []bsptypes.VertexId{9, 4, 1, 0}},
	}
	for _, w := range cases {
		var buf bytes.Buffer
		c.Encode(&buf, w)
		got, err := c.Decode(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, w.ID, got.ID)
		require.Equal(t, w.Start, got.Start)
		require.Equal(t, w.Path, got.Path)
	}
}
