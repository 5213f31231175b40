package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"xray-pipeline/internal/core/domain"
	ports "xray-pipeline/internal/core/ports/output"
)

// ParamsLoader reads the params schema fresh for every triggered run.
type ParamsLoader func() (domain.Params, error)

// RunService triggers pipeline runs one at a time and reads back their records.
type RunService struct {
	repo       ports.RunRepository
	backend    ports.ModelBackend
	opts       PipelineOptions
	loadParams ParamsLoader

	mu sync.Mutex
}

// NewRunService wires the run service. repo may be nil when no run store is
// configured; Trigger still works, Get and List report ErrRunStoreDisabled.
func NewRunService(repo ports.RunRepository, backend ports.ModelBackend, opts PipelineOptions, loadParams ParamsLoader) *RunService {
	return &RunService{repo: repo, backend: backend, opts: opts, loadParams: loadParams}
}

// Trigger runs the pipeline synchronously and returns its final record.
// A second call while a run is in progress fails with ErrPipelineBusy.
func (s *RunService) Trigger(ctx context.Context) (*domain.PipelineRun, error) {
	if !s.mu.TryLock() {
		return nil, domain.ErrPipelineBusy
	}
	defer s.mu.Unlock()

	params, err := s.loadParams()
	if err != nil {
		return nil, domain.Wrap(domain.StagePipeline, "load params", err)
	}
	p := NewTrainingPipeline(s.opts, params, s.backend, s.repo, nil)
	_, err = p.RunPipeline(ctx)
	return p.Run(), err
}

func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	if s.repo == nil {
		return nil, domain.ErrRunStoreDisabled
	}
	if id == uuid.Nil {
		return nil, domain.ErrInvalidRunID
	}
	return s.repo.GetByID(ctx, id)
}

// List pages through run records; the filter is normalized first.
func (s *RunService) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	if s.repo == nil {
		return nil, 0, domain.ErrRunStoreDisabled
	}
	return s.repo.List(ctx, filter.Normalized())
}
