package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zelak312/blockmotion/blockmatch"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: a.mp4", errSourceNotFound), true},
		{fmt.Errorf("%w: b.mp4", errOutputExists), true},
		{errSameOutput, true},
		{fmt.Errorf("%w: levels", errInvalidOptions), true},
		{fmt.Errorf("frame 3: %w", &blockmatch.DimensionMismatchError{SourceWidth: 1}), true},
		{fmt.Errorf("estimating: %w", blockmatch.ErrInvalidLevelCount), true},
		{errors.New("exit status 1"), false},
		{os.ErrDeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, isPermanent(tt.err))
		})
	}
}

func newTestWorker(deleteOutput bool) *Worker {
	config := &Config{DeleteOutputIfAlreadyExist: &deleteOutput}
	return NewWorker(0, testLogger(), &PoolWorker{config: config})
}

func TestPrepareOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	existing := filepath.Join(dir, "existing.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	t.Run("SamePath", func(t *testing.T) {
		_, err := newTestWorker(true).prepareOutput(&Job{Path: input, OutputPath: input})
		assert.ErrorIs(t, err, errSameOutput)
	})

	t.Run("ExistingKept", func(t *testing.T) {
		_, err := newTestWorker(false).prepareOutput(&Job{Path: input, OutputPath: existing})
		assert.ErrorIs(t, err, errOutputExists)
	})

	t.Run("ExistingOverwritten", func(t *testing.T) {
		overwrite, err := newTestWorker(true).prepareOutput(&Job{Path: input, OutputPath: existing})
		require.NoError(t, err)
		assert.True(t, overwrite)
	})

	t.Run("CreatesFolder", func(t *testing.T) {
		output := filepath.Join(dir, "nested", "deeper", "out.mp4")
		overwrite, err := newTestWorker(false).prepareOutput(&Job{Path: input, OutputPath: output})
		require.NoError(t, err)
		assert.False(t, overwrite)

		exist, err := PathExist(filepath.Dir(output))
		require.NoError(t, err)
		assert.True(t, exist)
	})
}

func TestWorkerInfoIsACopy(t *testing.T) {
	w := newTestWorker(false)
	job := Job{ID: 4, Path: "a.mp4"}
	w.workerInfo.Job = &job
	w.workerInfo.Active = true

	info := w.GetInfo()
	info.Job.Path = "changed"

	assert.Equal(t, "a.mp4", job.Path)
	assert.Equal(t, 0, info.ID)
	assert.True(t, info.Active)
}

func TestWorkerProgressWithoutHub(t *testing.T) {
	w := newTestWorker(false)
	w.updateStep("Estimating motion")
	w.updateProgress(50)

	info := w.GetInfo()
	assert.Equal(t, "Estimating motion", info.Step)
	assert.Equal(t, 50.0, info.Progress)
}
