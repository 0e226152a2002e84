// Package quality scores a predicted frame against the frame it predicts.
package quality

import (
	"math"

	"github.com/Zelak312/blockmotion/blockmatch"
)

// MaxPSNR is reported for identical frames, where the ratio is unbounded.
const MaxPSNR = 100.0

// Scores groups the measures reported for one prediction.
type Scores struct {
	MSE          float64 `json:"mse"`
	PSNR         float64 `json:"psnr"`
	Entropy      float64 `json:"entropy"`
	ErrorEntropy float64 `json:"errorEntropy"`
}

func checkPair(a, b *blockmatch.Frame) error {
	if a == nil || b == nil || a.Width*a.Height == 0 {
		return blockmatch.ErrEmptyFrame
	}

	if a.Width != b.Width || a.Height != b.Height {
		return &blockmatch.DimensionMismatchError{
			SourceWidth:  a.Width,
			SourceHeight: a.Height,
			TargetWidth:  b.Width,
			TargetHeight: b.Height,
		}
	}
	return nil
}

// MSE is the mean squared difference over the whole frame.
func MSE(a, b *blockmatch.Frame) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}

	var sum int64
	for i := range a.Pix[:a.Width*a.Height] {
		d := int64(a.Pix[i]) - int64(b.Pix[i])
		sum += d * d
	}
	return float64(sum) / float64(a.Width*a.Height), nil
}

// PSNR converts a mean squared error of 8-bit samples to decibels.
func PSNR(mse float64) float64 {
	if mse <= 0 {
		return MaxPSNR
	}
	return math.Min(MaxPSNR, 10*math.Log10(255*255/mse))
}

// Entropy is the Shannon entropy of the frame histogram in bits per pixel.
func Entropy(f *blockmatch.Frame) float64 {
	n := f.Width * f.Height
	if n == 0 {
		return 0
	}

	var hist [256]int
	for _, v := range f.Pix[:n] {
		hist[v]++
	}

	var e float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		e -= p * math.Log2(p)
	}
	return e
}

// ErrorImage maps the signed difference a-b to a displayable frame
// centered on 128.
func ErrorImage(a, b *blockmatch.Frame) (*blockmatch.Frame, error) {
	if err := checkPair(a, b); err != nil {
		return nil, err
	}

	out := blockmatch.NewFrame(a.Width, a.Height)
	for i := range out.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i]) + 128
		if d < 0 {
			d = 0
		} else if d > 255 {
			d = 255
		}
		out.Pix[i] = uint8(d)
	}
	return out, nil
}

// Score computes every measure of predicted against actual.
func Score(actual, predicted *blockmatch.Frame) (Scores, error) {
	mse, err := MSE(actual, predicted)
	if err != nil {
		return Scores{}, err
	}

	errImg, err := ErrorImage(actual, predicted)
	if err != nil {
		return Scores{}, err
	}

	return Scores{
		MSE:          mse,
		PSNR:         PSNR(mse),
		Entropy:      Entropy(predicted),
		ErrorEntropy: Entropy(errImg),
	}, nil
}
