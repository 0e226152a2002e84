package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zelak312/blockmotion/blockmatch"
)

func TestFieldCodecIsReady(t *testing.T) {
	require.NotNil(t, fieldEncoder)
	require.NotNil(t, fieldDecoder)

	data, err := EncodeField(blockmatch.NewField(0, 0))
	require.NoError(t, err)

	decoded, err := DecodeField(data)
	require.NoError(t, err)
	assert.Zero(t, decoded.Len())
}

func TestFieldCodecRoundTrip(t *testing.T) {
	field := blockmatch.NewField(40, 30)
	for row := 0; row < field.Rows; row++ {
		for col := 0; col < field.Cols; col++ {
			field.Set(col, row, blockmatch.Vector{X: col%3 - 1, Y: -row % 5})
		}
	}

	data, err := EncodeField(field)
	require.NoError(t, err)

	raw, err := field.MarshalBinary()
	require.NoError(t, err)
	assert.Less(t, len(data), len(raw))

	decoded, err := DecodeField(data)
	require.NoError(t, err)
	if diff := cmp.Diff(field, decoded); diff != "" {
		t.Errorf("decoded field mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFieldRejectsGarbage(t *testing.T) {
	_, err := DecodeField([]byte("definitely not zstd"))
	assert.Error(t, err)

	// valid zstd around an invalid field
	data := fieldEncoder.EncodeAll([]byte{1, 2, 3}, nil)
	_, err = DecodeField(data)
	assert.Error(t, err)
}
