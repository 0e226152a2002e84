package blockmatch

import (
	"fmt"
	"strings"
)

// Metric scores how different two equally sized blocks are. Lower is more
// similar.
type Metric func(a, b Block) float64

// MSE is the mean squared pixel difference over the block.
func MSE(a, b Block) float64 {
	var sum int
	for i := 0; i < a.Size; i++ {
		ra, rb := a.Row(i), b.Row(i)
		for j := range ra {
			d := int(ra[j]) - int(rb[j])
			sum += d * d
		}
	}
	return float64(sum) / float64(a.Size*a.Size)
}

// SAD is the mean absolute pixel difference over the block.
func SAD(a, b Block) float64 {
	var sum int
	for i := 0; i < a.Size; i++ {
		ra, rb := a.Row(i), b.Row(i)
		for j := range ra {
			d := int(ra[j]) - int(rb[j])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return float64(sum) / float64(a.Size*a.Size)
}

// MetricByName resolves the names accepted in configuration files.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "", "mse":
		return MSE, nil
	case "sad":
		return SAD, nil
	default:
		return nil, fmt.Errorf("unknown distortion metric %q", name)
	}
}
