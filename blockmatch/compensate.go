package blockmatch

import "fmt"

// Compensate predicts the source frame of a match from its reference
// (target) frame: every block is copied from the reference at its
// displaced position. Pixels outside the block grid keep the co-located
// reference pixel.
func Compensate(reference *Frame, field *Field, blockSize int) (*Frame, error) {
	if reference.empty() {
		return nil, ErrEmptyFrame
	}

	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}

	if field == nil || !field.Fits(reference.Width, reference.Height, blockSize) {
		return nil, ErrFieldMismatch
	}

	out := reference.Clone()
	for row := 0; row < field.Rows; row++ {
		for col := 0; col < field.Cols; col++ {
			x, y := col*blockSize, row*blockSize
			v := field.At(col, row)
			sx := clamp(x+v.X, 0, reference.Width-blockSize)
			sy := clamp(y+v.Y, 0, reference.Height-blockSize)

			src := reference.Block(sx, sy, blockSize)
			dst := out.Block(x, y, blockSize)
			for i := 0; i < blockSize; i++ {
				copy(dst.Row(i), src.Row(i))
			}
		}
	}

	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
