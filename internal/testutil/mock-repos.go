package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
)

// MockRunRepo is a mock of RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineRun), args.Error(1)
}

func (m *MockRunRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.PipelineRun), args.Int(1), args.Error(2)
}

// MockModelBackend is a mock of ModelBackend.
type MockModelBackend struct {
	mock.Mock
}

func (m *MockModelBackend) NewBaseModel(spec ports.BaseModelSpec) (ports.Classifier, error) {
	args := m.Called(spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Classifier), args.Error(1)
}

func (m *MockModelBackend) LoadModel(path string) (ports.Classifier, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Classifier), args.Error(1)
}

func (m *MockModelBackend) FlowFromDirectory(dir string, opts ports.FlowOptions) (ports.DataFlow, error) {
	args := m.Called(dir, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.DataFlow), args.Error(1)
}

// MockClassifier is a mock of Classifier.
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Compile(opts ports.CompileOptions) error {
	args := m.Called(opts)
	return args.Error(0)
}

func (m *MockClassifier) Fit(ctx context.Context, train, validation ports.DataFlow, epochs int) ([]ports.EpochStats, error) {
	args := m.Called(ctx, train, validation, epochs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.EpochStats), args.Error(1)
}

func (m *MockClassifier) Predict(ctx context.Context, flow ports.DataFlow) ([]float64, error) {
	args := m.Called(ctx, flow)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockClassifier) Save(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// StaticFlow is a DataFlow with fixed labels, for tests that never read pixels.
type StaticFlow struct {
	Name    string
	Labels  []int
	Indices map[string]int
}

func (f *StaticFlow) Len() int                     { return 1 }
func (f *StaticFlow) Samples() int                 { return len(f.Labels) }
func (f *StaticFlow) Classes() []int               { return f.Labels }
func (f *StaticFlow) ClassIndices() map[string]int { return f.Indices }
