package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrQueueFull = errors.New("job queue is full")
)

const jobColumns = `id, type, status, session_id, params, progress, result, error, created_at, started_at, completed_at`

// JobQueue persists jobs in sqlite and runs them one at a time
type JobQueue struct {
	db       *sql.DB
	mu       sync.RWMutex
	pending  chan string // job IDs to process
	handlers map[JobType]JobHandler
	notify   Notifier
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewJobQueue creates and starts a new job queue
func NewJobQueue(db *sql.DB) *JobQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &JobQueue{
		db:       db,
		pending:  make(chan string, 100),
		handlers: make(map[JobType]JobHandler),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// Jobs left over from a previous process lost their session reservation
	q.failInterrupted()

	go q.worker()

	return q
}

// RegisterHandler registers a handler for a job type
func (q *JobQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// SetNotifier installs the callback run on every job change
func (q *JobQueue) SetNotifier(fn Notifier) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = fn
}

// Enqueue creates a new job and adds it to the queue
func (q *JobQueue) Enqueue(jobType JobType, sessionID string, params interface{}) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    StatusPending,
		SessionID: sessionID,
		Params:    paramsJSON,
		Progress:  0,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, status, session_id, params, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Status, job.SessionID, string(job.Params), job.Progress, job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	select {
	case q.pending <- job.ID:
	default:
		q.failJob(job, ErrQueueFull.Error())
		return nil, ErrQueueFull
	}

	q.publish(job)
	return job, nil
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	row := q.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs newest first, limited to one session when sessionID is set
func (q *JobQueue) ListJobs(sessionID string) ([]*Job, error) {
	var rows *sql.Rows
	var err error
	if sessionID == "" {
		rows, err = q.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`)
	} else {
		rows, err = q.db.Query(`SELECT `+jobColumns+` FROM jobs WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress updates the progress of a running job
func (q *JobQueue) UpdateProgress(job *Job, progress float64) {
	job.Progress = progress
	q.db.Exec("UPDATE jobs SET progress = ? WHERE id = ?", progress, job.ID)
	q.publish(job)
}

// Stop shuts down the worker and waits for the current job to return
func (q *JobQueue) Stop() {
	q.cancel()
	<-q.done
}

// worker processes jobs from the pending channel one at a time
func (q *JobQueue) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.pending:
			q.processJob(jobID)
		}
	}
}

// processJob runs a single job to completion or failure
func (q *JobQueue) processJob(jobID string) {
	job, err := q.GetJob(jobID)
	if err != nil {
		log.Printf("[job] failed to load job %s: %v", jobID, err)
		return
	}

	if job.Status != StatusPending {
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		log.Printf("[job] no handler for job type %s", job.Type)
		q.failJob(job, fmt.Sprintf("no handler for job type: %s", job.Type))
		return
	}

	now := time.Now()
	job.StartedAt = &now
	job.Status = StatusRunning
	q.db.Exec("UPDATE jobs SET status = ?, started_at = ? WHERE id = ?",
		StatusRunning, now, job.ID)
	q.publish(job)
	log.Printf("[job] job %s (%s) started for session %s", job.ID, job.Type, job.SessionID)

	updateProgress := func(progress float64) {
		q.UpdateProgress(job, progress)
	}

	if err := q.run(handler, job, updateProgress); err != nil {
		q.failJob(job, err.Error())
		return
	}
	q.completeJob(job)
}

// run calls handler, turning a panic into a job failure so the worker survives
func (q *JobQueue) run(handler JobHandler, job *Job, updateProgress func(float64)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(q.ctx, job, updateProgress)
}

func (q *JobQueue) completeJob(job *Job) {
	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 1.0
	job.CompletedAt = &now

	var result interface{}
	if len(job.Result) > 0 {
		result = string(job.Result)
	}
	q.db.Exec("UPDATE jobs SET status = ?, progress = 1.0, result = ?, completed_at = ? WHERE id = ?",
		StatusCompleted, result, now, job.ID)
	q.publish(job)
	log.Printf("[job] job %s completed", job.ID)
}

func (q *JobQueue) failJob(job *Job, errMsg string) {
	now := time.Now()
	job.Status = StatusFailed
	job.Error = errMsg
	job.CompletedAt = &now
	q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?",
		StatusFailed, errMsg, now, job.ID)
	q.publish(job)
	log.Printf("[job] job %s failed: %s", job.ID, errMsg)
}

func (q *JobQueue) publish(job *Job) {
	q.mu.RLock()
	notify := q.notify
	q.mu.RUnlock()
	if notify != nil {
		snapshot := *job
		notify(&snapshot)
	}
}

// failInterrupted marks jobs that never finished in a previous process as failed
func (q *JobQueue) failInterrupted() {
	res, err := q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE status IN (?, ?)",
		StatusFailed, "interrupted by server restart", time.Now(), StatusPending, StatusRunning)
	if err != nil {
		log.Printf("[job] failed to clean up interrupted jobs: %v", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[job] marked %d interrupted jobs as failed", n)
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	job := &Job{}
	var params, result sql.NullString
	var startedAt, completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(&job.ID, &job.Type, &job.Status, &job.SessionID, &params, &job.Progress,
		&result, &errMsg, &job.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	if params.Valid {
		job.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}
