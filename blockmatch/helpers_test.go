package blockmatch

import (
	"math/rand/v2"
	"testing"
)

// noiseFrame fills a frame with reproducible white noise.
func noiseFrame(width, height int, seed uint64) *Frame {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := NewFrame(width, height)
	for i := range f.Pix {
		f.Pix[i] = uint8(r.IntN(256))
	}
	return f
}

// crop copies the width x height window of f starting at (x, y).
func crop(t *testing.T, f *Frame, x, y, width, height int) *Frame {
	t.Helper()
	if x < 0 || y < 0 || x+width > f.Width || y+height > f.Height {
		t.Fatalf("crop (%d,%d %dx%d) outside %dx%d", x, y, width, height, f.Width, f.Height)
	}

	out := NewFrame(width, height)
	for row := 0; row < height; row++ {
		copy(out.Pix[row*width:(row+1)*width], f.Pix[(y+row)*f.Width+x:])
	}
	return out
}

// shiftedPair returns two 64x64 frames where the content of source at
// (x, y) appears in target at (x+dx, y+dy).
func shiftedPair(t *testing.T, dx, dy int) (*Frame, *Frame) {
	t.Helper()
	world := noiseFrame(96, 96, 42)
	source := crop(t, world, 16, 16, 64, 64)
	target := crop(t, world, 16-dx, 16-dy, 64, 64)
	return source, target
}

// landsInside reports whether the block at (col, row) displaced by v stays
// inside a width x height frame.
func landsInside(col, row, blockSize, width, height int, v Vector) bool {
	x := col*blockSize + v.X
	y := row*blockSize + v.Y
	return x >= 0 && y >= 0 && x+blockSize <= width && y+blockSize <= height
}
