package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// MatchJob represents an async match run. The run goroutine mutates it under
// the embedded mutex; use View for a consistent snapshot.
type MatchJob struct {
	EventBroadcaster

	ID              string
	Status          JobStatus
	TotalImages     int
	ProcessedImages int
	Error           string
	StartedAt       time.Time
	CompletedAt     *time.Time
	Result          *MatchJobResult
}

// MatchJobView is the JSON shape of a job status response.
type MatchJobView struct {
	ID              string          `json:"id"`
	Status          JobStatus       `json:"status"`
	TotalImages     int             `json:"total_images"`
	ProcessedImages int             `json:"processed_images"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Result          *MatchJobResult `json:"result,omitempty"`
}

// View snapshots the job's fields under the lock for safe JSON encoding.
func (j *MatchJob) View() MatchJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return MatchJobView{
		ID:              j.ID,
		Status:          j.Status,
		TotalImages:     j.TotalImages,
		ProcessedImages: j.ProcessedImages,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.Result,
	}
}

// MatchJobResult represents the outcome of a completed match run.
type MatchJobResult struct {
	Matched int `json:"matched"`
	Total   int `json:"total"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *MatchJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStatus updates the job status.
func (j *MatchJob) SetStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	j.mu.Unlock()
}

// SetProgress updates the processed image counter.
func (j *MatchJob) SetProgress(processed int) {
	j.mu.Lock()
	j.ProcessedImages = processed
	j.mu.Unlock()
}

// Complete marks the job finished with a result.
func (j *MatchJob) Complete(result *MatchJobResult) {
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Result = result
	j.mu.Unlock()
}

// Fail marks the job failed.
func (j *MatchJob) Fail(message string) {
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = message
	j.mu.Unlock()
}

// Cancel cancels the match job.
func (j *MatchJob) Cancel() {
	j.EventBroadcaster.Cancel()
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.mu.Unlock()
}

// finishedBefore reports whether the job reached a terminal state before cutoff.
func (j *MatchJob) finishedBefore(cutoff time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// SetCancel stores the job's context cancel function.
func (b *EventBroadcaster) SetCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// jobRetention is how long finished jobs stay queryable before pruning.
const jobRetention = time.Hour

// JobManager manages async match jobs. Finished jobs are pruned after a
// retention window so the map does not grow for the process lifetime.
type JobManager struct {
	jobs map[string]*MatchJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*MatchJob),
	}
}

// CreateJob creates a new match job, pruning expired finished jobs.
func (m *JobManager) CreateJob(id string, total int) *MatchJob {
	job := &MatchJob{
		ID:          id,
		Status:      JobStatusPending,
		TotalImages: total,
		StartedAt:   time.Now(),
	}

	m.mu.Lock()
	m.pruneLocked(time.Now().Add(-jobRetention))
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *MatchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// pruneLocked drops jobs that finished before cutoff. Caller holds m.mu.
func (m *JobManager) pruneLocked(cutoff time.Time) {
	for id, job := range m.jobs {
		if job.finishedBefore(cutoff) {
			delete(m.jobs, id)
		}
	}
}
