package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Zelak312/blockmotion/blockmatch"
	"github.com/Zelak312/blockmotion/quality"
)

type FrameReader interface {
	ReadFrame() (*blockmatch.Frame, error)
}

type FrameWriter interface {
	WriteFrame(frame *blockmatch.Frame) error
}

// FrameResult is what gets recorded for every predicted frame. Scores are
// for the full resolution prediction, Levels holds the per level scores of
// a pyramidal run indexed like the pyramid (0 is full resolution).
type FrameResult struct {
	JobID  int64             `json:"jobId"`
	Frame  int64             `json:"frame"`
	Levels []quality.Scores  `json:"levels,omitempty"`
	Field  *blockmatch.Field `json:"-"`
	quality.Scores
}

// Estimator runs the frame loop: every frame is predicted from the frame
// InterFrameDistance positions before it.
type Estimator struct {
	logger  *logrus.Entry
	matcher *blockmatch.Matcher
	options EstimationOptions
}

func NewEstimator(logger *logrus.Entry, matcher *blockmatch.Matcher, options EstimationOptions) (*Estimator, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}

	return &Estimator{
		logger:  logger,
		matcher: matcher,
		options: options,
	}, nil
}

// Run reads frames until EOF. Predicted frames go to writer when it's not
// nil. It returns the number of frames read.
func (e *Estimator) Run(ctx context.Context, reader FrameReader, writer FrameWriter, onResult func(FrameResult) error) (int64, error) {
	previousFrames := make([]*blockmatch.Frame, 0, e.options.InterFrameDistance+1)

	var frameNumber int64
	for ; ; frameNumber++ {
		if err := ctx.Err(); err != nil {
			return frameNumber, err
		}

		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return frameNumber, fmt.Errorf("reading frame %d: %w", frameNumber, err)
		}

		if len(previousFrames) >= e.options.InterFrameDistance {
			reference := previousFrames[0]
			previousFrames = previousFrames[1:]

			result, predicted, err := e.Estimate(frame, reference)
			if err != nil {
				return frameNumber, fmt.Errorf("estimating frame %d: %w", frameNumber, err)
			}

			result.Frame = frameNumber
			e.logger.WithFields(logrus.Fields{
				"frame": frameNumber,
				"mse":   result.MSE,
				"psnr":  result.PSNR,
			}).Trace("Frame estimated")

			if onResult != nil {
				if err := onResult(result); err != nil {
					return frameNumber, err
				}
			}

			if writer != nil {
				if err := writer.WriteFrame(predicted); err != nil {
					return frameNumber, fmt.Errorf("writing frame %d: %w", frameNumber, err)
				}
			}
		}

		previousFrames = append(previousFrames, frame)
	}

	return frameNumber, nil
}

// Estimate matches current against reference, predicts current from the
// reference and scores the prediction.
func (e *Estimator) Estimate(current, reference *blockmatch.Frame) (FrameResult, *blockmatch.Frame, error) {
	blockSize := e.options.BlockSize

	if e.options.Levels == 1 {
		field, err := e.matcher.Match(current, reference, blockSize, e.options.WindowSize)
		if err != nil {
			return FrameResult{}, nil, err
		}

		predicted, scores, err := predict(current, reference, field, blockSize)
		if err != nil {
			return FrameResult{}, nil, err
		}

		return FrameResult{Scores: scores, Field: field}, predicted, nil
	}

	levels, err := blockmatch.BuildLevels(current, reference, blockSize, e.options.Levels)
	if err != nil {
		return FrameResult{}, nil, err
	}

	fields, err := e.matcher.MatchLevels(levels, e.options.WindowSize)
	if err != nil {
		return FrameResult{}, nil, err
	}

	result := FrameResult{
		Levels: make([]quality.Scores, len(levels)),
		Field:  fields[0],
	}

	var fullPrediction *blockmatch.Frame
	for i, level := range levels {
		predicted, scores, err := predict(level.Source, level.Target, fields[i], level.BlockSize)
		if err != nil {
			return FrameResult{}, nil, fmt.Errorf("level %d: %w", i, err)
		}

		result.Levels[i] = scores
		if i == 0 {
			fullPrediction = predicted
			result.Scores = scores
		}
	}

	return result, fullPrediction, nil
}

func predict(current, reference *blockmatch.Frame, field *blockmatch.Field, blockSize int) (*blockmatch.Frame, quality.Scores, error) {
	predicted, err := blockmatch.Compensate(reference, field, blockSize)
	if err != nil {
		return nil, quality.Scores{}, err
	}

	scores, err := quality.Score(current, predicted)
	if err != nil {
		return nil, quality.Scores{}, err
	}

	return predicted, scores, nil
}
