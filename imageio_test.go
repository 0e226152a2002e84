package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zelak312/blockmotion/blockmatch"
)

func writePNG(t *testing.T, dir string, name string, frame *blockmatch.Frame) string {
	t.Helper()

	p := filepath.Join(dir, name)
	file, err := os.Create(p)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, png.Encode(file, frame.Gray()))
	return p
}

func TestLoadFrame(t *testing.T) {
	frame := noiseFrame(20, 12, 3)
	p := writePNG(t, t.TempDir(), "frame.png", frame)

	loaded, err := LoadFrame(p)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Width)
	assert.Equal(t, 12, loaded.Height)
	assert.Equal(t, frame.Pix, loaded.Pix)
}

func TestLoadFrameErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrame(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = LoadFrame(garbage)
	assert.Error(t, err)
}

func TestRunPair(t *testing.T) {
	frames := shiftedFrames(t, 2, 64, 64, 4, 2)
	dir := t.TempDir()
	target := writePNG(t, dir, "target.png", frames[0])
	source := writePNG(t, dir, "source.png", frames[1])

	options := testOptions
	options.Levels = 2

	var out bytes.Buffer
	require.NoError(t, RunPair(&out, source, target, blockmatch.NewMatcher(), options))

	var decoded struct {
		BlockSize int                 `json:"blockSize"`
		Fields    []*blockmatch.Field `json:"fields"`
		MSE       float64             `json:"mse"`
		PSNR      float64             `json:"psnr"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))

	assert.Equal(t, 8, decoded.BlockSize)
	require.Len(t, decoded.Fields, 2)
	assert.Equal(t, 8, decoded.Fields[0].Cols)
	assert.Equal(t, blockmatch.Vector{X: -4, Y: -2}, decoded.Fields[0].At(4, 4))
	assert.Greater(t, decoded.PSNR, 0.0)
}

func TestRunPairRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()
	p := writePNG(t, dir, "a.png", noiseFrame(16, 16, 1))

	options := testOptions
	options.Levels = 9

	var out bytes.Buffer
	assert.Error(t, RunPair(&out, p, p, blockmatch.NewMatcher(), options))
	assert.Zero(t, out.Len())
}
