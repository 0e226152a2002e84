package blockmatch

import "fmt"

// Level is one resolution of a frame pair pyramid together with the block
// size used at that resolution.
type Level struct {
	Source    *Frame
	Target    *Frame
	BlockSize int
}

// BuildLevels returns levelCount levels, index 0 being the input pair. Each
// following level halves the frames and the block size.
func BuildLevels(source, target *Frame, blockSize, levelCount int) ([]Level, error) {
	if err := checkPair(source, target); err != nil {
		return nil, err
	}

	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}

	if levelCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevelCount, levelCount)
	}

	levels := make([]Level, levelCount)
	levels[0] = Level{Source: source, Target: target, BlockSize: blockSize}
	for i := 1; i < levelCount; i++ {
		prev := levels[i-1]
		if prev.BlockSize < 2 {
			return nil, fmt.Errorf("%w: block size %d cannot be halved for level %d",
				ErrInvalidLevelCount, prev.BlockSize, i)
		}

		if prev.Source.Width < 2 || prev.Source.Height < 2 {
			return nil, fmt.Errorf("%w: %dx%d frames cannot be halved for level %d",
				ErrInvalidLevelCount, prev.Source.Width, prev.Source.Height, i)
		}

		levels[i] = Level{
			Source:    Downsample(prev.Source),
			Target:    Downsample(prev.Target),
			BlockSize: prev.BlockSize / 2,
		}
	}

	return levels, nil
}

// Downsample halves both dimensions by averaging every 2x2 pixel square.
// A trailing odd row or column is dropped.
func Downsample(f *Frame) *Frame {
	out := NewFrame(f.Width/2, f.Height/2)
	for y := 0; y < out.Height; y++ {
		top := f.Pix[2*y*f.Width:]
		bottom := f.Pix[(2*y+1)*f.Width:]
		row := out.Pix[y*out.Width : (y+1)*out.Width]
		for x := range row {
			sum := int(top[2*x]) + int(top[2*x+1]) + int(bottom[2*x]) + int(bottom[2*x+1])
			row[x] = uint8((sum + 2) / 4)
		}
	}
	return out
}

// Upsample prepares a coarse level field as guidance for the next finer
// level. Frame and block size both double from one level to the next, so
// the grid is unchanged and only the vectors double.
func Upsample(f *Field) *Field {
	out := NewField(f.Cols, f.Rows)
	for i, v := range f.Vectors {
		out.Vectors[i] = v.Scale(2)
	}
	return out
}

// MatchPyramidal runs a coarse to fine search with the default matcher.
func MatchPyramidal(source, target *Frame, blockSize, windowSize, levelCount int) ([]*Field, error) {
	return defaultMatcher.MatchPyramidal(source, target, blockSize, windowSize, levelCount)
}

// MatchPyramidal builds a levelCount pyramid and matches it from the
// coarsest level down. Index 0 of the result is the full resolution field.
func (m *Matcher) MatchPyramidal(source, target *Frame, blockSize, windowSize, levelCount int) ([]*Field, error) {
	if err := checkSizes(blockSize, windowSize); err != nil {
		return nil, err
	}

	levels, err := BuildLevels(source, target, blockSize, levelCount)
	if err != nil {
		return nil, err
	}

	return m.MatchLevels(levels, windowSize)
}

// MatchLevels matches prebuilt pyramid levels, seeding every level with the
// upsampled result of the level below it.
func (m *Matcher) MatchLevels(levels []Level, windowSize int) ([]*Field, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidLevelCount)
	}

	fields := make([]*Field, len(levels))
	var guide Guidance = NoGuidance{}
	for i := len(levels) - 1; i >= 0; i-- {
		l := levels[i]
		field, err := m.MatchGuided(l.Source, l.Target, l.BlockSize, windowSize, guide)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}

		fields[i] = field
		if field.Len() == 0 {
			guide = NoGuidance{}
			continue
		}
		guide = GuidanceField{Field: Upsample(field)}
	}

	return fields, nil
}
