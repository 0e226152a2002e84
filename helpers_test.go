package main

import (
	"io"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Zelak312/blockmotion/blockmatch"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func noiseFrame(width, height int, seed uint64) *blockmatch.Frame {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	frame := blockmatch.NewFrame(width, height)
	for i := range frame.Pix {
		frame.Pix[i] = uint8(r.IntN(256))
	}
	return frame
}

// shiftedFrames cuts count frames of size width x height out of a larger
// noise image, every frame moved by (dx, dy) relative to the previous one.
func shiftedFrames(t *testing.T, count, width, height, dx, dy int) []*blockmatch.Frame {
	t.Helper()

	margin := 32
	world := noiseFrame(width+2*margin, height+2*margin, 7)

	frames := make([]*blockmatch.Frame, 0, count)
	for i := 0; i < count; i++ {
		ox, oy := margin-i*dx, margin-i*dy
		if ox < 0 || oy < 0 || ox+width > world.Width || oy+height > world.Height {
			t.Fatalf("frame %d leaves the world", i)
		}

		frame := blockmatch.NewFrame(width, height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				frame.Set(x, y, world.At(ox+x, oy+y))
			}
		}
		frames = append(frames, frame)
	}

	return frames
}

type sliceReader struct {
	frames []*blockmatch.Frame
	err    error
}

func (r *sliceReader) ReadFrame() (*blockmatch.Frame, error) {
	if len(r.frames) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}

	frame := r.frames[0]
	r.frames = r.frames[1:]
	return frame, nil
}

type sliceWriter struct {
	frames []*blockmatch.Frame
}

func (w *sliceWriter) WriteFrame(frame *blockmatch.Frame) error {
	w.frames = append(w.frames, frame)
	return nil
}
