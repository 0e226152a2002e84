package blockmatch

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Vector is an integer displacement in pixels.
type Vector struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Scale(k int) Vector {
	return Vector{X: v.X * k, Y: v.Y * k}
}

// Field holds one Vector per block, addressed by block column and row.
type Field struct {
	Cols    int      `json:"cols"`
	Rows    int      `json:"rows"`
	Vectors []Vector `json:"vectors"`
}

func NewField(cols, rows int) *Field {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}

	return &Field{
		Cols:    cols,
		Rows:    rows,
		Vectors: make([]Vector, cols*rows),
	}
}

func (f *Field) At(col, row int) Vector {
	return f.Vectors[row*f.Cols+col]
}

func (f *Field) Set(col, row int, v Vector) {
	f.Vectors[row*f.Cols+col] = v
}

func (f *Field) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Vectors)
}

// clampedAt reads the vector at (col, row), snapping indices that fall
// outside the grid to its last column or row.
func (f *Field) clampedAt(col, row int) Vector {
	if col >= f.Cols {
		col = f.Cols - 1
	}
	if row >= f.Rows {
		row = f.Rows - 1
	}
	return f.At(col, row)
}

func (f *Field) Equal(o *Field) bool {
	if f == nil || o == nil {
		return f == o
	}

	if f.Cols != o.Cols || f.Rows != o.Rows {
		return false
	}

	for i := range f.Vectors {
		if f.Vectors[i] != o.Vectors[i] {
			return false
		}
	}
	return true
}

// Fits reports whether the field has the grid a frame of the given size
// produces with blockSize.
func (f *Field) Fits(width, height, blockSize int) bool {
	return f.Cols == width/blockSize && f.Rows == height/blockSize
}

var errShortField = errors.New("vector field data is truncated")

// MarshalBinary encodes the field as two uint32 dimensions followed by
// little endian int32 pairs.
func (f *Field) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+8*len(f.Vectors))
	binary.LittleEndian.PutUint32(buf[0:], uint32(f.Cols))
	binary.LittleEndian.PutUint32(buf[4:], uint32(f.Rows))

	off := 8
	for _, v := range f.Vectors {
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v.X)))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(int32(v.Y)))
		off += 8
	}
	return buf, nil
}

func (f *Field) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errShortField
	}

	cols := uint64(binary.LittleEndian.Uint32(data[0:]))
	rows := uint64(binary.LittleEndian.Uint32(data[4:]))
	vectors := uint64(len(data)-8) / 8
	if cols != 0 && rows > vectors/cols {
		return fmt.Errorf("%w: %d bytes for %dx%d vectors", errShortField, len(data), cols, rows)
	}
	if uint64(len(data)) != 8+8*cols*rows {
		return fmt.Errorf("%w: %d bytes for %dx%d vectors", errShortField, len(data), cols, rows)
	}

	f.Cols = int(cols)
	f.Rows = int(rows)
	f.Vectors = make([]Vector, cols*rows)
	off := 8
	for i := range f.Vectors {
		f.Vectors[i] = Vector{
			X: int(int32(binary.LittleEndian.Uint32(data[off:]))),
			Y: int(int32(binary.LittleEndian.Uint32(data[off+4:]))),
		}
		off += 8
	}
	return nil
}
