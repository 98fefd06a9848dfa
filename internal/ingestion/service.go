package ingestion

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/vitalio/medsearch/internal/config"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/internal/progress"
	"github.com/vitalio/medsearch/pkg/logger"
)

// Service runs ingestion jobs on a bounded worker pool: distinct documents
// process concurrently, each document's pipeline stays sequential.
type Service struct {
	pipeline *Pipeline
	tracker  *progress.Tracker
	pool     *ants.Pool
	log      *logger.Logger

	// baseCtx bounds the lifetime of queued jobs; canceling it fails
	// everything still running at shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewService creates a Service with a pool of cfg.Workers goroutines.
func NewService(pipeline *Pipeline, tracker *progress.Tracker, cfg config.IngestionConfig, log *logger.Logger) (*Service, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		pipeline: pipeline,
		tracker:  tracker,
		pool:     pool,
		log:      log,
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Submit registers the job as queued and schedules it on the pool. Submit
// returns once the job is queued; processing is asynchronous.
func (s *Service) Submit(ctx context.Context, job Job) error {
	if err := s.tracker.Start(ctx, job.DocumentID, job.UserID); err != nil {
		return err
	}

	err := s.pool.Submit(func() {
		if err := s.pipeline.Ingest(s.baseCtx, job); err != nil {
			s.log.WithError(models.ErrorInfo{Message: err.Error()}).
				WithPayload(map[string]interface{}{"document_id": job.DocumentID}).
				Error("Document ingestion failed")
			return
		}
		s.log.WithPayload(map[string]interface{}{"document_id": job.DocumentID}).
			Info("Document ingestion completed")
	})
	if err != nil {
		s.pipeline.fail(job, "failed to schedule ingestion: "+err.Error())
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}
	return nil
}

// Status returns the live progress of an active job.
func (s *Service) Status(documentID string) (progress.Job, bool) {
	return s.tracker.Get(documentID)
}

// Release stops accepting work and fails jobs still in flight. The service
// must not be used after Release.
func (s *Service) Release() {
	s.cancel()
	s.pool.Release()
}
