package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Zelak312/blockmotion/blockmatch"
	"github.com/Zelak312/blockmotion/quality"
)

// LoadFrame decodes an image file into a gray frame.
func LoadFrame(path string) (*blockmatch.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return blockmatch.FrameFromImage(img), nil
}

type pairOutput struct {
	BlockSize int                 `json:"blockSize"`
	Fields    []*blockmatch.Field `json:"fields"`
	quality.Scores
}

// RunPair estimates the motion between two image files and writes the
// fields and prediction scores as JSON.
func RunPair(out io.Writer, sourcePath string, targetPath string, matcher *blockmatch.Matcher, options EstimationOptions) error {
	source, err := LoadFrame(sourcePath)
	if err != nil {
		return err
	}

	target, err := LoadFrame(targetPath)
	if err != nil {
		return err
	}

	if err := options.validate(); err != nil {
		return err
	}

	levels, err := blockmatch.BuildLevels(source, target, options.BlockSize, options.Levels)
	if err != nil {
		return err
	}

	fields, err := matcher.MatchLevels(levels, options.WindowSize)
	if err != nil {
		return err
	}

	_, scores, err := predict(source, target, fields[0], options.BlockSize)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(pairOutput{
		BlockSize: options.BlockSize,
		Fields:    fields,
		Scores:    scores,
	})
}
