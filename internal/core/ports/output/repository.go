package ports

import (
	"context"

	"github.com/google/uuid"

	"xray-pipeline/internal/core/domain"
)

const (
	DefaultRunListLimit = 20
	MaxRunListLimit     = 100
)

type RunListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Normalized clamps Limit to [1, MaxRunListLimit], defaulting to
// DefaultRunListLimit, and Offset to >= 0.
func (f RunListFilter) Normalized() RunListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultRunListLimit
	}
	if f.Limit > MaxRunListLimit {
		f.Limit = MaxRunListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// RunRepository stores pipeline run records.
type RunRepository interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	Update(ctx context.Context, run *domain.PipelineRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	List(ctx context.Context, filter RunListFilter) ([]*domain.PipelineRun, int, error)
}
