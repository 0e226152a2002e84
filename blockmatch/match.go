package blockmatch

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Guidance selects where each block's search window is centered. It is
// either NoGuidance or GuidanceField.
type Guidance interface {
	isGuidance()
}

// NoGuidance centers every window on the block's own position.
type NoGuidance struct{}

// GuidanceField centers each window on the block position shifted by the
// vector stored at the same grid index of Field.
type GuidanceField struct {
	Field *Field
}

func (NoGuidance) isGuidance()    {}
func (GuidanceField) isGuidance() {}

// Matcher runs block searches with a fixed metric and degree of
// parallelism. The zero value is not usable, build one with NewMatcher.
type Matcher struct {
	metric  Metric
	workers int
}

type Option func(*Matcher)

// WithMetric replaces the default MSE distortion.
func WithMetric(metric Metric) Option {
	return func(m *Matcher) {
		if metric != nil {
			m.metric = metric
		}
	}
}

// WithWorkers spreads block rows over n goroutines. Output does not depend
// on n.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		metric:  MSE,
		workers: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMatcher = NewMatcher()

// Match runs an exhaustive search with the default matcher.
func Match(source, target *Frame, blockSize, windowSize int) (*Field, error) {
	return defaultMatcher.Match(source, target, blockSize, windowSize)
}

// MatchGuided runs a guided search with the default matcher.
func MatchGuided(source, target *Frame, blockSize, windowSize int, guide Guidance) (*Field, error) {
	return defaultMatcher.MatchGuided(source, target, blockSize, windowSize, guide)
}

// Match finds, for every full block of source, the best matching block of
// target within [-windowSize/2, +windowSize/2] pixels of the block's
// position on each axis.
func (m *Matcher) Match(source, target *Frame, blockSize, windowSize int) (*Field, error) {
	return m.MatchGuided(source, target, blockSize, windowSize, NoGuidance{})
}

// MatchGuided is Match with each search window shifted by the prior vector
// of the block. Returned vectors are relative to the unshifted block
// position.
func (m *Matcher) MatchGuided(source, target *Frame, blockSize, windowSize int, guide Guidance) (*Field, error) {
	if err := checkPair(source, target); err != nil {
		return nil, err
	}

	if err := checkSizes(blockSize, windowSize); err != nil {
		return nil, err
	}

	var prior *Field
	switch g := guide.(type) {
	case nil, NoGuidance:
	case GuidanceField:
		if g.Field.Len() == 0 {
			return nil, fmt.Errorf("%w: guidance field is empty", ErrInvalidGuidance)
		}
		prior = g.Field
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidGuidance, guide)
	}

	field := NewField(source.Width/blockSize, source.Height/blockSize)
	s := &search{
		source:    source,
		target:    target,
		blockSize: blockSize,
		half:      windowSize / 2,
		metric:    m.metric,
		prior:     prior,
	}

	if m.workers <= 1 || field.Rows <= 1 {
		for row := 0; row < field.Rows; row++ {
			s.row(field, row)
		}
		return field, nil
	}

	var g errgroup.Group
	g.SetLimit(m.workers)
	for row := 0; row < field.Rows; row++ {
		g.Go(func() error {
			s.row(field, row)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return field, nil
}

type search struct {
	source    *Frame
	target    *Frame
	blockSize int
	half      int
	metric    Metric
	prior     *Field
}

// row fills one row of the field. Rows never share output slots.
func (s *search) row(field *Field, row int) {
	y := row * s.blockSize
	for col := 0; col < field.Cols; col++ {
		x := col * s.blockSize
		center := Vector{X: x, Y: y}
		if s.prior != nil {
			center = center.Add(s.prior.clampedAt(col, row))
		}
		field.Set(col, row, s.best(x, y, center))
	}
}

// best scans the window around center in raster order and keeps the first
// candidate with the lowest distortion. Blocks with no candidate inside
// the target keep a zero vector.
func (s *search) best(x, y int, center Vector) Vector {
	block := s.source.Block(x, y, s.blockSize)
	maxX := s.target.Width - s.blockSize
	maxY := s.target.Height - s.blockSize

	// only in-frame candidates are visited, whatever the window size
	minY, limY := max(0, center.Y-s.half), min(maxY, center.Y+s.half)
	minX, limX := max(0, center.X-s.half), min(maxX, center.X+s.half)

	best := Vector{}
	bestCost := math.Inf(1)
	found := false
	for ty := minY; ty <= limY; ty++ {
		for tx := minX; tx <= limX; tx++ {
			cost := s.metric(block, s.target.Block(tx, ty, s.blockSize))
			if !found || cost < bestCost {
				found = true
				bestCost = cost
				best = Vector{X: tx - x, Y: ty - y}
			}
		}
	}
	return best
}
