package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Zelak312/blockmotion/quality"
)

type Sqlite struct {
	pool *sql.DB
}

func NewSqlite(path string) (*Sqlite, error) {
	// pragmas in the dsn apply to every pooled connection
	pool, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &Sqlite{
		pool: pool,
	}, nil
}

func (s *Sqlite) Close() error {
	return s.pool.Close()
}

//go:embed migrations/*.sql
var embedMigrations embed.FS

func (s *Sqlite) RunMigrations() error {
	migrationFs, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create fs.FS: %w", err)
	}

	d, err := iofs.New(migrationFs, ".")
	if err != nil {
		return fmt.Errorf("failed to create new instance: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.pool, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to get driver with instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to make new instance of migration: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed doing migrations: %w", err)
	}

	return nil
}

const jobColumns = `id, path, output_path, block_size, window_size, levels, inter_frame_distance`

func scanJob(row interface{ Scan(...any) error }, j *Job) error {
	return row.Scan(&j.ID, &j.Path, &j.OutputPath,
		&j.BlockSize, &j.WindowSize, &j.Levels, &j.InterFrameDistance)
}

func (s *Sqlite) GetJobs() ([]Job, error) {
	querySQL := `SELECT ` + jobColumns + ` FROM jobs WHERE done = false AND failed = false ORDER BY id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []Job{}, err
	}

	defer rows.Close()
	jobs := []Job{}
	for rows.Next() {
		var j Job
		if err := scanJob(rows, &j); err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return []Job{}, err
	}

	return jobs, nil
}

func (s *Sqlite) GetJob(id int64) (Job, error) {
	querySQL := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	var j Job
	err := scanJob(s.pool.QueryRow(querySQL, id), &j)
	return j, err
}

func (s *Sqlite) InsertJob(job *Job) (int64, error) {
	insertSQL := `INSERT INTO jobs (path, output_path, block_size, window_size, levels, inter_frame_distance)
				VALUES (?, ?, ?, ?, ?, ?)`
	statement, err := s.pool.Prepare(insertSQL)
	if err != nil {
		return 0, err
	}

	defer statement.Close()
	result, err := statement.Exec(job.Path, job.OutputPath,
		job.BlockSize, job.WindowSize, job.Levels, job.InterFrameDistance)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	job.ID = id
	return id, nil
}

func (s *Sqlite) MarkJobAsDone(job *Job) error {
	updateSQL := `UPDATE jobs SET done = true WHERE id = ?`
	statement, err := s.pool.Prepare(updateSQL)
	if err != nil {
		return err
	}
	defer statement.Close()

	// Execute the statement with the provided job ID
	_, err = statement.Exec(job.ID)
	return err
}

func (s *Sqlite) GetJobRetries(job *Job) (int, error) {
	getRetrySQL := `SELECT retries FROM jobs WHERE id = ?`
	statement, err := s.pool.Prepare(getRetrySQL)
	if err != nil {
		return 0, err
	}
	defer statement.Close()

	retries := 0
	err = statement.QueryRow(job.ID).Scan(&retries)
	if err != nil {
		return 0, err
	}

	return retries, nil
}

func (s *Sqlite) UpdateJobRetries(job *Job, retries int) error {
	updateSQL := `UPDATE jobs SET retries = ? WHERE id = ?`
	statement, err := s.pool.Prepare(updateSQL)
	if err != nil {
		return err
	}
	defer statement.Close()

	_, err = statement.Exec(retries, job.ID)
	return err
}

func (s *Sqlite) FailJob(job *Job, output string, progErr string) (err error) {
	tx, err := s.pool.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insertSQL := `INSERT INTO failed_jobs (job_id, ffmpeg_output, error) VALUES (?, ?, ?)`
	if _, err = tx.Exec(insertSQL, job.ID, output, progErr); err != nil {
		return err
	}

	markFailedSQL := `UPDATE jobs SET failed = ? WHERE id = ?`
	if _, err = tx.Exec(markFailedSQL, true, job.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Sqlite) DeleteJobByID(id int64) error {
	deleteSQL := `DELETE FROM jobs WHERE id = ?`
	statement, err := s.pool.Prepare(deleteSQL)
	if err != nil {
		return err
	}

	defer statement.Close()
	_, err = statement.Exec(id)
	return err
}

func (s *Sqlite) GetFailedJobs() ([]FailedJob, error) {
	querySQL := `SELECT f.id, f.ffmpeg_output, f.error, j.id, j.path, j.output_path,
					j.block_size, j.window_size, j.levels, j.inter_frame_distance
				FROM failed_jobs f
				INNER JOIN jobs j ON j.id = f.job_id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []FailedJob{}, err
	}

	defer rows.Close()
	jobs := []FailedJob{}
	for rows.Next() {
		var f FailedJob
		if err := rows.Scan(&f.ID, &f.FFmpegOutput, &f.Error, &f.Job.ID, &f.Job.Path, &f.Job.OutputPath,
			&f.Job.BlockSize, &f.Job.WindowSize, &f.Job.Levels, &f.Job.InterFrameDistance); err != nil {
			return jobs, err
		}
		jobs = append(jobs, f)
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return []FailedJob{}, err
	}

	return jobs, nil
}

// DeleteFrameResults drops what a previous attempt of the job recorded.
func (s *Sqlite) DeleteFrameResults(jobID int64) error {
	_, err := s.pool.Exec(`DELETE FROM frame_results WHERE job_id = ?`, jobID)
	return err
}

// InsertFrameResult stores the scores of a frame. vectors holds the
// compressed field and may be nil.
func (s *Sqlite) InsertFrameResult(result *FrameResult, vectors []byte) error {
	levels, err := json.Marshal(result.Levels)
	if err != nil {
		return err
	}

	insertSQL := `INSERT INTO frame_results (job_id, frame, mse, psnr, entropy, error_entropy, levels, vectors)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.pool.Exec(insertSQL, result.JobID, result.Frame,
		result.MSE, result.PSNR, result.Entropy, result.ErrorEntropy, string(levels), vectors)
	return err
}

func (s *Sqlite) GetFrameResults(jobID int64) ([]FrameResult, error) {
	querySQL := `SELECT job_id, frame, mse, psnr, entropy, error_entropy, levels
				FROM frame_results WHERE job_id = ? ORDER BY frame`
	rows, err := s.pool.Query(querySQL, jobID)
	if err != nil {
		return []FrameResult{}, err
	}

	defer rows.Close()
	results := []FrameResult{}
	for rows.Next() {
		var r FrameResult
		var levels string
		if err := rows.Scan(&r.JobID, &r.Frame, &r.MSE, &r.PSNR, &r.Entropy, &r.ErrorEntropy, &levels); err != nil {
			return results, err
		}

		r.Levels = []quality.Scores{}
		if err := json.Unmarshal([]byte(levels), &r.Levels); err != nil {
			return results, fmt.Errorf("frame %d levels: %w", r.Frame, err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return []FrameResult{}, err
	}

	return results, nil
}

// GetFrameVectors returns the compressed field of a frame, sql.ErrNoRows
// when the frame is unknown and nil when vectors were not stored.
func (s *Sqlite) GetFrameVectors(jobID int64, frame int64) ([]byte, error) {
	var vectors []byte
	err := s.pool.QueryRow(`SELECT vectors FROM frame_results WHERE job_id = ? AND frame = ?`, jobID, frame).
		Scan(&vectors)
	return vectors, err
}
