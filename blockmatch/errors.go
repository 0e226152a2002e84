package blockmatch

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFrame        = errors.New("frame is empty")
	ErrInvalidBlockSize  = errors.New("block size must be positive")
	ErrInvalidWindowSize = errors.New("window size must be positive")
	ErrInvalidLevelCount = errors.New("invalid pyramid level count")
	ErrInvalidGuidance   = errors.New("invalid guidance")
	ErrFieldMismatch     = errors.New("vector field does not match frame geometry")
)

// DimensionMismatchError is returned when two frames handed to the same
// operation do not share their width and height.
type DimensionMismatchError struct {
	SourceWidth, SourceHeight int
	TargetWidth, TargetHeight int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: source is %dx%d, target is %dx%d",
		e.SourceWidth, e.SourceHeight, e.TargetWidth, e.TargetHeight)
}

func checkPair(source, target *Frame) error {
	if source.empty() || target.empty() {
		return ErrEmptyFrame
	}

	if source.Width != target.Width || source.Height != target.Height {
		return &DimensionMismatchError{
			SourceWidth:  source.Width,
			SourceHeight: source.Height,
			TargetWidth:  target.Width,
			TargetHeight: target.Height,
		}
	}

	return nil
}

func checkSizes(blockSize, windowSize int) error {
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}

	if windowSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, windowSize)
	}

	return nil
}
