package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zelak312/blockmotion/blockmatch"
	"github.com/Zelak312/blockmotion/quality"
)

var testOptions = EstimationOptions{
	BlockSize:          8,
	WindowSize:         8,
	Levels:             1,
	InterFrameDistance: 1,
}

func newTestEstimator(t *testing.T, options EstimationOptions) *Estimator {
	t.Helper()

	estimator, err := NewEstimator(testLogger(), blockmatch.NewMatcher(), options)
	require.NoError(t, err)
	return estimator
}

func collect(results *[]FrameResult) func(FrameResult) error {
	return func(result FrameResult) error {
		*results = append(*results, result)
		return nil
	}
}

func TestEstimatorRejectsInvalidOptions(t *testing.T) {
	options := testOptions
	options.BlockSize = 5

	_, err := NewEstimator(testLogger(), blockmatch.NewMatcher(), options)
	assert.Error(t, err)
}

func TestEstimatorStaticVideo(t *testing.T) {
	frame := noiseFrame(32, 32, 1)
	reader := &sliceReader{frames: []*blockmatch.Frame{frame, frame, frame, frame, frame}}
	writer := &sliceWriter{}

	var results []FrameResult
	frames, err := newTestEstimator(t, testOptions).Run(context.Background(), reader, writer, collect(&results))
	require.NoError(t, err)

	assert.Equal(t, int64(5), frames)
	require.Len(t, results, 4)
	assert.Len(t, writer.frames, 4)

	for i, result := range results {
		assert.Equal(t, int64(i+1), result.Frame)
		assert.Zero(t, result.MSE)
		assert.Equal(t, quality.MaxPSNR, result.PSNR)
		assert.Empty(t, result.Levels)
		require.NotNil(t, result.Field)
		assert.Equal(t, 4, result.Field.Cols)
		assert.Equal(t, frame.Pix, writer.frames[i].Pix)
	}
}

func TestEstimatorInterFrameDistance(t *testing.T) {
	options := testOptions
	options.InterFrameDistance = 2

	reader := &sliceReader{frames: shiftedFrames(t, 5, 32, 32, 1, 0)}

	var results []FrameResult
	frames, err := newTestEstimator(t, options).Run(context.Background(), reader, nil, collect(&results))
	require.NoError(t, err)

	assert.Equal(t, int64(5), frames)
	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, int64(i+2), result.Frame)
	}
}

func TestEstimatorTracksTranslation(t *testing.T) {
	frames := shiftedFrames(t, 2, 64, 64, 2, 1)
	estimator := newTestEstimator(t, testOptions)

	result, predicted, err := estimator.Estimate(frames[1], frames[0])
	require.NoError(t, err)
	require.NotNil(t, predicted)

	// blocks away from the top left edge find their exact match
	assert.Equal(t, blockmatch.Vector{X: -2, Y: -1}, result.Field.At(4, 4))

	still, err := quality.MSE(frames[1], frames[0])
	require.NoError(t, err)
	assert.Less(t, result.MSE, still)
}

func TestEstimatorPyramidalScoresEveryLevel(t *testing.T) {
	options := testOptions
	options.Levels = 3

	frames := shiftedFrames(t, 2, 64, 64, 2, 2)
	result, predicted, err := newTestEstimator(t, options).Estimate(frames[1], frames[0])
	require.NoError(t, err)

	require.Len(t, result.Levels, 3)
	assert.Equal(t, result.Levels[0], result.Scores)
	assert.Equal(t, 64, predicted.Width)
	assert.Equal(t, 8, result.Field.Cols)
}

func TestEstimatorStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &sliceReader{frames: shiftedFrames(t, 3, 16, 16, 0, 0)}
	_, err := newTestEstimator(t, testOptions).Run(ctx, reader, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimatorPropagatesErrors(t *testing.T) {
	readErr := errors.New("broken pipe")

	t.Run("Reader", func(t *testing.T) {
		reader := &sliceReader{frames: shiftedFrames(t, 2, 16, 16, 0, 0), err: readErr}
		frames, err := newTestEstimator(t, testOptions).Run(context.Background(), reader, nil, nil)
		assert.ErrorIs(t, err, readErr)
		assert.Equal(t, int64(2), frames)
	})

	t.Run("Callback", func(t *testing.T) {
		reader := &sliceReader{frames: shiftedFrames(t, 3, 16, 16, 0, 0)}
		calls := 0
		_, err := newTestEstimator(t, testOptions).Run(context.Background(), reader, nil, func(FrameResult) error {
			calls++
			return readErr
		})
		assert.ErrorIs(t, err, readErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("SizeChange", func(t *testing.T) {
		reader := &sliceReader{frames: []*blockmatch.Frame{noiseFrame(16, 16, 1), noiseFrame(24, 16, 2)}}
		_, err := newTestEstimator(t, testOptions).Run(context.Background(), reader, nil, nil)

		var dimErr *blockmatch.DimensionMismatchError
		assert.ErrorAs(t, err, &dimErr)
	})
}
