package blockmatch

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"
)

// Frame is a single channel 8-bit luma image stored row by row.
type Frame struct {
	Pix    []uint8
	Width  int
	Height int
}

// Block is a square view into the pixels of a Frame. Pix starts at the
// block origin and rows are Stride bytes apart.
type Block struct {
	Pix    []uint8
	Stride int
	Size   int
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// FrameFromBytes wraps raw gray8 data, as produced by ffmpeg with
// -pix_fmt gray, without copying it.
func FrameFromBytes(data []byte, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyFrame, width, height)
	}

	if len(data) != width*height {
		return nil, fmt.Errorf("frame data has %d bytes, want %d for %dx%d", len(data), width*height, width, height)
	}

	return &Frame{Pix: data, Width: width, Height: height}, nil
}

// FrameFromImage converts any decoded image to a gray Frame.
func FrameFromImage(img image.Image) *Frame {
	gray, ok := img.(*image.Gray)
	if !ok {
		g := gift.New(gift.Grayscale())
		gray = image.NewGray(g.Bounds(img.Bounds()))
		g.Draw(gray, img)
	}

	bounds := gray.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())
	for y := 0; y < f.Height; y++ {
		start := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(f.Pix[y*f.Width:(y+1)*f.Width], gray.Pix[start:start+f.Width])
	}

	return f
}

// Gray exposes the frame as an *image.Gray sharing the same pixels.
func (f *Frame) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// Block returns the size x size view whose top left corner is (x, y).
// The caller guarantees the block lies inside the frame.
func (f *Frame) Block(x, y, size int) Block {
	return Block{
		Pix:    f.Pix[y*f.Width+x:],
		Stride: f.Width,
		Size:   size,
	}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := NewFrame(f.Width, f.Height)
	copy(c.Pix, f.Pix)
	return c
}

func (f *Frame) empty() bool {
	return f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height
}

// Row returns row i of the block.
func (b Block) Row(i int) []uint8 {
	start := i * b.Stride
	return b.Pix[start : start+b.Size]
}
