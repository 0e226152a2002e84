package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Zelak312/blockmotion/views"
)

type handlers struct {
	logger *logrus.Entry
	config *Config
	sqlite *Sqlite
	queue  *Queue
	pool   *PoolWorker
	hub    *Hub
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/", h.index)
	r.GET("/ping", h.ping)
	r.GET("/jobs", h.listJobs)
	r.POST("/jobs", h.addJob)
	r.GET("/jobs/failed", h.listFailedJobs)
	r.DELETE("/jobs/:id", h.deleteJob)
	r.GET("/jobs/:id/frames", h.listFrames)
	r.GET("/jobs/:id/frames/:frame/vectors", h.frameVectors)
	r.GET("/workers", h.listWorkers)
	r.GET("/ws", h.hub.HandleConnections)
}

func (h *handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (h *handlers) index(c *gin.Context) {
	c.HTML(http.StatusOK, "", views.JobsPage(toJobRows(h.queue.GetJobs()), toWorkerRows(h.pool.GetWorkerInfos())))
}

func (h *handlers) addJob(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	job.EstimationOptions.withDefaults(h.config.Estimation)
	if err := job.EstimationOptions.validate(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.sqlite.InsertJob(&job); err != nil {
		h.logger.Error("Failed to insert job: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.WithFields(StructFields(job)).Info("Job added")
	h.queue.Enqueue(job)
	c.JSON(http.StatusOK, job)
}

func (h *handlers) deleteJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	_, ok := h.queue.RemoveByID(id)
	if !ok {
		if _, err := h.sqlite.GetJob(id); errors.Is(err, sql.ErrNoRows) {
			c.String(http.StatusNotFound, "Job not found")
			return
		}
	}

	if err := h.sqlite.DeleteJobByID(id); err != nil {
		h.logger.Error("Failed to delete job: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.WithField("id", id).Info("Job deleted")
	c.String(http.StatusOK, "Success")
}

func (h *handlers) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.GetJobs())
}

func (h *handlers) listFailedJobs(c *gin.Context) {
	failedJobs, err := h.sqlite.GetFailedJobs()
	if err != nil {
		h.logger.Error("Failed to get failed jobs: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, failedJobs)
}

func (h *handlers) listWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, h.pool.GetWorkerInfos())
}

func (h *handlers) listFrames(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.sqlite.GetFrameResults(id)
	if err != nil {
		h.logger.Error("Failed to get frame results: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *handlers) frameVectors(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	frame, err := strconv.ParseInt(c.Param("frame"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.sqlite.GetFrameVectors(id, frame)
	if errors.Is(err, sql.ErrNoRows) {
		c.String(http.StatusNotFound, "Frame not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get frame vectors: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	if len(data) == 0 {
		c.String(http.StatusNotFound, "Vectors were not stored for this frame")
		return
	}

	field, err := DecodeField(data)
	if err != nil {
		h.logger.Error("Failed to decode frame vectors: ", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, field)
}

func toJobRows(jobs []Job) []views.JobRow {
	rows := make([]views.JobRow, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, views.JobRow{
			ID:         job.ID,
			Path:       job.Path,
			OutputPath: job.OutputPath,
			BlockSize:  job.BlockSize,
			WindowSize: job.WindowSize,
			Levels:     job.Levels,
		})
	}

	return rows
}

func toWorkerRows(infos []WorkerInfo) []views.WorkerRow {
	rows := make([]views.WorkerRow, 0, len(infos))
	for _, info := range infos {
		row := views.WorkerRow{
			ID:       info.ID,
			Active:   info.Active,
			Step:     info.Step,
			Progress: info.Progress,
		}
		if info.Job != nil {
			row.Path = info.Job.Path
		}
		rows = append(rows, row)
	}

	return rows
}
