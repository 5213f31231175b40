package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"xray-pipeline/internal/adapters/secondary/mlbackend"
	"xray-pipeline/internal/core/domain"
	ports "xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/testutil"
)

func staticParams() (domain.Params, error) { return testParams(), nil }

func TestRunService_Trigger(t *testing.T) {
	opts := pipelineOptions(t, xraySource(t, map[string]int{"NORMAL": 4, "PNEUMONIA": 4}))
	repo := recordingRepo()
	svc := NewRunService(repo, mlbackend.New(), opts, staticParams)

	run, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, "xray", run.PipelineName)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestRunService_Trigger_BackToBackRuns(t *testing.T) {
	opts := pipelineOptions(t, xraySource(t, map[string]int{"NORMAL": 4, "PNEUMONIA": 4}))
	svc := NewRunService(nil, mlbackend.New(), opts, staticParams)

	first, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	second, err := svc.Trigger(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.ArtifactDir, second.ArtifactDir)
	assert.NotEqual(t, first.TrainedModelPath, second.TrainedModelPath)
	assert.FileExists(t, first.TrainedModelPath)
	assert.FileExists(t, second.TrainedModelPath)
}

func TestRunService_Trigger_Failure(t *testing.T) {
	opts := pipelineOptions(t, xraySource(t, map[string]int{"NORMAL": 4, "PNEUMONIA": 4}))
	opts.ExpectedAccuracy = 1.1
	svc := NewRunService(nil, mlbackend.New(), opts, staticParams)

	run, err := svc.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrAccuracyBelowExpected)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
}

func TestRunService_Trigger_ParamsError(t *testing.T) {
	svc := NewRunService(nil, mlbackend.New(), PipelineOptions{}, func() (domain.Params, error) {
		return domain.Params{}, domain.ErrInvalidParams
	})

	run, err := svc.Trigger(context.Background())
	assert.Nil(t, run)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
	assert.Equal(t, domain.StagePipeline, domain.StageOf(err))
}

func TestRunService_Trigger_Busy(t *testing.T) {
	svc := NewRunService(nil, nil, PipelineOptions{}, staticParams)
	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrPipelineBusy)
}

func TestRunService_Get(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	svc := NewRunService(repo, nil, PipelineOptions{}, staticParams)

	id := uuid.New()
	expected := &domain.PipelineRun{ID: id, Status: domain.RunStatusSucceeded}
	repo.On("GetByID", mock.Anything, id).Return(expected, nil)

	run, err := svc.Get(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, expected, run)

	_, err = svc.Get(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRunID)
}

func TestRunService_Get_NotFound(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	svc := NewRunService(repo, nil, PipelineOptions{}, staticParams)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunService_List_Limits(t *testing.T) {
	tests := []struct {
		in, want ports.RunListFilter
	}{
		{ports.RunListFilter{}, ports.RunListFilter{Limit: 20}},
		{ports.RunListFilter{Limit: 500, Offset: 10}, ports.RunListFilter{Limit: 100, Offset: 10}},
		{ports.RunListFilter{Limit: 5, Offset: -3, Status: "FAILED"}, ports.RunListFilter{Limit: 5, Status: "FAILED"}},
	}
	for _, tt := range tests {
		repo := new(testutil.MockRunRepo)
		svc := NewRunService(repo, nil, PipelineOptions{}, staticParams)
		repo.On("List", mock.Anything, tt.want).Return([]*domain.PipelineRun{}, 0, nil)

		_, _, err := svc.List(context.Background(), tt.in)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	}
}

func TestRunService_StoreDisabled(t *testing.T) {
	svc := NewRunService(nil, nil, PipelineOptions{}, staticParams)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRunStoreDisabled)
	_, _, err = svc.List(context.Background(), ports.RunListFilter{})
	assert.True(t, errors.Is(err, domain.ErrRunStoreDisabled))
}
