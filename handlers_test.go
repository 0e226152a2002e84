package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zelak312/blockmotion/blockmatch"
)

type handlerFixture struct {
	router *gin.Engine
	sqlite *Sqlite
	queue  *Queue
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlite := newTestSqlite(t)
	config := &Config{Estimation: EstimationOptions{BlockSize: 8, WindowSize: 16, Levels: 1, InterFrameDistance: 1}}
	queue := NewQueue(nil, nil)

	h := &handlers{
		logger: testLogger(),
		config: config,
		sqlite: sqlite,
		queue:  queue,
		pool:   &PoolWorker{},
		hub:    NewHub(testLogger()),
	}

	r := gin.New()
	h.register(r)

	return &handlerFixture{router: r, sqlite: sqlite, queue: queue}
}

func (f *handlerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "pong"}`, rec.Body.String())
}

func TestAddJob(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPost, "/jobs", `{"path": "/videos/a.mp4", "windowSize": 24, "levels": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, EstimationOptions{BlockSize: 8, WindowSize: 24, Levels: 2, InterFrameDistance: 1}, job.EstimationOptions)

	assert.Equal(t, []Job{job}, f.queue.GetJobs())

	stored, err := f.sqlite.GetJobs()
	require.NoError(t, err)
	assert.Equal(t, []Job{job}, stored)

	rec = f.do(http.MethodGet, "/jobs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed []Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, []Job{job}, listed)
}

func TestAddJobValidation(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"MissingPath", `{"outPath": "b.mp4"}`},
		{"BadBlockSize", `{"path": "a.mp4", "blockSize": 7}`},
		{"TooManyLevels", `{"path": "a.mp4", "levels": 6}`},
		{"NotJson", `path=a.mp4`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Zero(t, f.queue.Len())
}

func TestDeleteJob(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPost, "/jobs", `{"path": "a.mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var job Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = f.do(http.MethodDelete, fmt.Sprintf("/jobs/%d", job.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.queue.Len())

	rec = f.do(http.MethodDelete, fmt.Sprintf("/jobs/%d", job.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/jobs/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrameEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	job := insertTestJob(t, f.sqlite, "a.mp4")

	field := blockmatch.NewField(3, 2)
	field.Set(2, 1, blockmatch.Vector{X: 4, Y: -1})
	vectors, err := EncodeField(field)
	require.NoError(t, err)

	result := FrameResult{JobID: job.ID, Frame: 1}
	result.MSE = 12.5
	require.NoError(t, f.sqlite.InsertFrameResult(&result, vectors))

	rec := f.do(http.MethodGet, fmt.Sprintf("/jobs/%d/frames", job.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []FrameResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 12.5, results[0].MSE)

	rec = f.do(http.MethodGet, fmt.Sprintf("/jobs/%d/frames/1/vectors", job.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decoded blockmatch.Field
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.True(t, field.Equal(&decoded))

	rec = f.do(http.MethodGet, fmt.Sprintf("/jobs/%d/frames/9/vectors", job.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/jobs/1/frames/x/vectors", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFailedJobs(t *testing.T) {
	f := newHandlerFixture(t)
	job := insertTestJob(t, f.sqlite, "a.mp4")
	require.NoError(t, f.sqlite.FailJob(&job, "", "source video not found"))

	rec := f.do(http.MethodGet, "/jobs/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var failed []FailedJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, job, failed[0].Job)
}
