package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Zelak312/blockmotion/blockmatch"
)

var retryLimit int = 5

var (
	errSourceNotFound = errors.New("source video not found")
	errOutputExists   = errors.New("output already exists")
	errSameOutput     = errors.New("output path is the same as the input path")
	errInvalidOptions = errors.New("invalid estimation options")
)

type Worker struct {
	id         int
	logger     *logrus.Entry
	poolWorker *PoolWorker
	progress   rate.Sometimes
	sync.RWMutex

	workerInfo WorkerInfo
}

type WorkerInfo struct {
	ID       int     `json:"id"`
	Active   bool    `json:"active"`
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
	Job      *Job    `json:"job"`
}

func NewWorker(id int, logger *logrus.Entry, poolWorker *PoolWorker) *Worker {
	return &Worker{
		id:         id,
		logger:     logger,
		poolWorker: poolWorker,
		progress:   rate.Sometimes{Interval: 250 * time.Millisecond},
		workerInfo: WorkerInfo{ID: id},
	}
}

// isPermanent reports errors that retrying the job cannot fix.
func isPermanent(err error) bool {
	var dimErr *blockmatch.DimensionMismatchError
	return errors.Is(err, errSourceNotFound) ||
		errors.Is(err, errOutputExists) ||
		errors.Is(err, errSameOutput) ||
		errors.Is(err, errInvalidOptions) ||
		errors.Is(err, blockmatch.ErrInvalidBlockSize) ||
		errors.Is(err, blockmatch.ErrInvalidWindowSize) ||
		errors.Is(err, blockmatch.ErrInvalidLevelCount) ||
		errors.As(err, &dimErr)
}

func (w *Worker) start() {
	defer w.poolWorker.waitGroup.Done()

	for job := range w.poolWorker.workChannel {
		w.Lock()
		w.workerInfo.Active = true
		w.workerInfo.Job = &job
		w.Unlock()

		err := w.doWork(&job)

		w.Lock()
		w.workerInfo.Active = false
		w.workerInfo.Job = nil
		w.workerInfo.Step = ""
		w.workerInfo.Progress = 0
		w.Unlock()
		w.sendUpdate()

		if w.poolWorker.ctx.Err() != nil {
			w.logger.Debug("Ctx error is: ", w.poolWorker.ctx.Err())
			if errors.Is(w.poolWorker.ctx.Err(), context.Canceled) {
				w.logger.Debug("Ctx was canceled")
				return
			}
		}

		if err != nil {
			w.logger.Warn(err)
		}
	}
}

func (w *Worker) doWork(job *Job) error {
	output, err := w.processJob(job)
	if w.poolWorker.ctx.Err() != nil {
		// The context is cancelled, the job stays pending
		// and will be loaded back on the next start
		return nil
	}

	if err != nil {
		w.handleProcessJobError(job, output, err)
		// Error was handled already
		return nil
	}

	if err := w.poolWorker.sqlite.MarkJobAsDone(job); err != nil {
		w.logger.Error("Failed to mark job as done: ", err)
		return err
	}

	w.logger.WithFields(StructFields(job)).Info("Finished processing job")
	return nil
}

func (w *Worker) handleProcessJobError(job *Job, output string, processErr error) {
	w.logger.WithFields(StructFields(job)).Error("Error processing job: ", processErr)
	if output != "" {
		w.logger.Debug("Process output: ", output)
	}

	if isPermanent(processErr) {
		_ = w.failJob(job, output, processErr)
		return
	}

	retries, err := w.poolWorker.sqlite.GetJobRetries(job)
	if errors.Is(err, sql.ErrNoRows) {
		w.logger.WithFields(StructFields(job)).Info("Job was deleted while processing")
		return
	}
	if err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to get retries: ", err)
		return
	}

	if retries >= retryLimit {
		_ = w.failJob(job, output, processErr)
		return
	}

	retries++
	err = w.poolWorker.sqlite.UpdateJobRetries(job, retries)
	if err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to update job retries: ", err)
		return
	}

	w.poolWorker.queue.Enqueue(*job)
	w.logger.WithFields(StructFields(job)).Info("Requeue job (back of the queue and retrying)")
}

func (w *Worker) failJob(job *Job, output string, failError error) error {
	w.logger.WithFields(StructFields(job)).Info("Job failed, removing it from queue")
	err := w.poolWorker.sqlite.FailJob(job, output, failError.Error())
	if err != nil {
		w.logger.WithFields(StructFields(job)).Error("Failed to fail the job: ", err)
		return err
	}

	return nil
}

// prepareOutput makes sure the predicted video can be written, it returns
// whether ffmpeg may overwrite the output.
func (w *Worker) prepareOutput(job *Job) (bool, error) {
	samePath, err := IsSamePath(job.Path, job.OutputPath)
	if err != nil {
		return false, err
	}

	if samePath {
		return false, errSameOutput
	}

	outputExist, err := PathExist(job.OutputPath)
	if err != nil {
		return false, err
	}

	if outputExist {
		if !*w.poolWorker.config.DeleteOutputIfAlreadyExist {
			return false, fmt.Errorf("%w: %s", errOutputExists, job.OutputPath)
		}

		w.logger.Debug("Output already exist, it will be overwritten")
		return true, nil
	}

	baseOutputPath := path.Dir(job.OutputPath)
	w.logger.WithField("baseOutputPath", baseOutputPath).
		Debug("Creating output folder if it doesn't exist")
	return false, os.MkdirAll(baseOutputPath, os.ModePerm)
}

func (w *Worker) processJob(job *Job) (string, error) {
	ctx := w.poolWorker.ctx
	config := w.poolWorker.config
	w.logger.WithFields(StructFields(job)).Info("Processing job")

	jobExist, err := PathExist(job.Path)
	if err != nil {
		return "", err
	}

	if !jobExist {
		return "", fmt.Errorf("%w: %s", errSourceNotFound, job.Path)
	}

	overwrite := false
	if job.OutputPath != "" {
		overwrite, err = w.prepareOutput(job)
		if err != nil {
			return "", err
		}
	}

	estimator, err := NewEstimator(w.logger, w.poolWorker.matcher, job.EstimationOptions)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidOptions, err)
	}

	// a retry starts over
	if err := w.poolWorker.sqlite.DeleteFrameResults(job.ID); err != nil {
		return "", err
	}

	w.updateStep("Getting video information")
	videoInfo, output, err := GetVideoInfo(ctx, job.Path)
	if err != nil {
		return output, err
	}

	w.logger.WithFields(StructFields(videoInfo)).Info("Video information")

	w.logger.Info("Setup ffmpeg processor")
	vp, err := NewVideoProcessor(videoInfo, config.FFmpegOptions)
	if err != nil {
		return "", err
	}

	if err := vp.StartReading(ctx); err != nil {
		return vp.Output(), err
	}

	var writer FrameWriter
	if job.OutputPath != "" {
		if err := vp.StartWriting(ctx, job.OutputPath, videoInfo.FrameRate, overwrite); err != nil {
			vp.Close()
			return vp.Output(), err
		}
		writer = vp
	}

	w.updateStep("Estimating motion")
	frameCount := videoInfo.FrameCount
	onResult := func(result FrameResult) error {
		result.JobID = job.ID

		var vectors []byte
		if *config.StoreVectors {
			var err error
			vectors, err = EncodeField(result.Field)
			if err != nil {
				return err
			}
		}

		if err := w.poolWorker.sqlite.InsertFrameResult(&result, vectors); err != nil {
			return fmt.Errorf("storing frame %d: %w", result.Frame, err)
		}

		if frameCount > 0 {
			w.progress.Do(func() {
				w.updateProgress(float64(result.Frame+1) / float64(frameCount) * 100)
			})
		}

		return nil
	}

	frames, runErr := estimator.Run(ctx, vp, writer, onResult)
	closeErr := vp.Close()
	if runErr != nil {
		return vp.Output(), runErr
	}

	if closeErr != nil {
		return vp.Output(), closeErr
	}

	w.updateProgress(100)
	w.logger.WithField("frames", frames).Info("Finished estimating motion")
	return "", nil
}

func (w *Worker) updateStep(step string) {
	w.logger.Info(step)

	w.Lock()
	w.workerInfo.Step = step
	w.workerInfo.Progress = 0
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) updateProgress(progress float64) {
	w.Lock()
	w.workerInfo.Progress = progress
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) sendUpdate() {
	packet := WsWorkerProgress{
		WsBaseMessage: WsBaseMessage{
			Type: "worker_progress",
		},
		WorkerInfo: w.GetInfo(),
	}

	w.poolWorker.hub.BroadcastMessage(packet)
}

func (w *Worker) GetInfo() WorkerInfo {
	w.RLock() // Shared lock for reading
	defer w.RUnlock()

	info := w.workerInfo
	if info.Job != nil {
		job := *info.Job
		info.Job = &job
	}

	return info
}
