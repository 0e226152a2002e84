package main

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/Zelak312/blockmotion/blockmatch"
)

var (
	fieldEncoder *zstd.Encoder
	fieldDecoder *zstd.Decoder
)

func init() {
	var err error
	fieldEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}

	fieldDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// EncodeField compresses a vector field for storage. Neighbouring blocks
// mostly share vectors so the binary form compresses well.
func EncodeField(field *blockmatch.Field) ([]byte, error) {
	raw, err := field.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return fieldEncoder.EncodeAll(raw, nil), nil
}

func DecodeField(data []byte) (*blockmatch.Field, error) {
	raw, err := fieldDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}

	var field blockmatch.Field
	if err := field.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &field, nil
}
