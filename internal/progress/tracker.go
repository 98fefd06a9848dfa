package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

var (
	// ErrUnknownJob is returned for transitions on a document that was never
	// started or whose job already reached a terminal status and was removed.
	ErrUnknownJob = errors.New("progress: unknown job")
	// ErrIllegalTransition is returned when a transition would move a job
	// backwards through the pipeline.
	ErrIllegalTransition = errors.New("progress: illegal transition")
)

// stageOrder fixes the linear pipeline order and the progress percentage
// reported at each stage. Progress is monotonically non-decreasing; 100 is
// reported only at completed.
var stageOrder = map[models.ProcessingStatus]int{
	models.ProcessingStatusQueued:        0,
	models.ProcessingStatusExtracting:    1,
	models.ProcessingStatusChunking:      2,
	models.ProcessingStatusEmbedding:     3,
	models.ProcessingStatusStoringChunks: 4,
	models.ProcessingStatusCompleted:     5,
}

var stageProgress = map[models.ProcessingStatus]int{
	models.ProcessingStatusQueued:        0,
	models.ProcessingStatusExtracting:    10,
	models.ProcessingStatusChunking:      30,
	models.ProcessingStatusEmbedding:     50,
	models.ProcessingStatusStoringChunks: 80,
	models.ProcessingStatusCompleted:     100,
}

// StageProgress returns the progress percentage reported at a stage.
// Unknown and failed stages report 0; a failed job keeps its last stage's
// progress instead.
func StageProgress(status models.ProcessingStatus) int {
	return stageProgress[status]
}

// Job is the ephemeral per-document progress state.
type Job struct {
	DocumentID string
	UserID     string
	Status     models.ProcessingStatus
	Progress   int
	Message    string
	Metadata   map[string]interface{}
	UpdatedAt  time.Time
}

// Notifier delivers progress events to the external notification sink.
/// Delivery is fire-and-forget: implementations must not block ingestion on
// sink failures.
type Notifier interface {
	Notify(ctx context.Context, update models.ProcessingUpdate)
}

// Tracker is a finite-state progress tracker for ingestion jobs. It is a
// pure event source: it validates and records transitions and emits events,
// but never retries or recovers on behalf of a caller. Once a job reaches
// completed or failed it accepts no further transitions and is removed from
// active tracking.
type Tracker struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	notifier Notifier
	log      *logger.Logger
}

// NewTracker creates a Tracker that publishes events to notifier.
func NewTracker(notifier Notifier, log *logger.Logger) *Tracker {
	return &Tracker{
		jobs:     make(map[string]*Job),
		notifier: notifier,
		log:      log,
	}
}

// Start registers a new job in the queued state and emits the first event.
// Starting an already-active job id is an error.
func (t *Tracker) Start(ctx context.Context, documentID, userID string) error {
	t.mu.Lock()
	if _, ok := t.jobs[documentID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("progress: job %s already active", documentID)
	}
	job := &Job{
		DocumentID: documentID,
		UserID:     userID,
		Status:     models.ProcessingStatusQueued,
		Progress:   0,
		UpdatedAt:  time.Now(),
	}
	t.jobs[documentID] = job
	update := t.updateFor(job)
	t.mu.Unlock()

	t.notifier.Notify(ctx, update)
	return nil
}

// Advance moves a job to the given non-failed stage. Transitions must move
// forward through the pipeline; skipping stages is allowed, going backwards
// is not.
func (t *Tracker) Advance(ctx context.Context, documentID string, status models.ProcessingStatus, message string) error {
	target, ok := stageOrder[status]
	if !ok {
		return fmt.Errorf("%w: cannot advance to %q", ErrIllegalTransition, status)
	}

	t.mu.Lock()
	job, ok := t.jobs[documentID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownJob
	}
	if stageOrder[job.Status] >= target {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, status)
	}

	job.Status = status
	job.Progress = stageProgress[status]
	job.Message = message
	job.UpdatedAt = time.Now()
	update := t.updateFor(job)
	if status.Terminal() {
		delete(t.jobs, documentID)
	}
	t.mu.Unlock()

	t.notifier.Notify(ctx, update)
	return nil
}

// Fail moves a job to the failed terminal state, keeping its last known
// progress value. Failing an unknown (or already terminal) job returns
// ErrUnknownJob.
func (t *Tracker) Fail(ctx context.Context, documentID, message string) error {
	t.mu.Lock()
	job, ok := t.jobs[documentID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownJob
	}
	job.Status = models.ProcessingStatusFailed
	job.Message = message
	job.UpdatedAt = time.Now()
	update := t.updateFor(job)
	delete(t.jobs, documentID)
	t.mu.Unlock()

	t.notifier.Notify(ctx, update)
	return nil
}

// Get returns a snapshot of an active job.
func (t *Tracker) Get(documentID string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[documentID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Active returns the number of jobs currently tracked.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func (t *Tracker) updateFor(job *Job) models.ProcessingUpdate {
	return models.ProcessingUpdate{
		DocumentID: job.DocumentID,
		UserID:     job.UserID,
		Status:     job.Status,
		Progress:   job.Progress,
		Message:    job.Message,
		Metadata:   job.Metadata,
		Timestamp:  job.UpdatedAt,
	}
}
