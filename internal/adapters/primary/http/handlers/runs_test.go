package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"xray-pipeline/internal/adapters/primary/http/dto"
	"xray-pipeline/internal/adapters/primary/http/middleware"
	"xray-pipeline/internal/adapters/secondary/mlbackend"
	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/core/services"
	"xray-pipeline/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const apiBase = "/api/v1/xray"

func testParams() (domain.Params, error) {
	return domain.Params{
		Optimizer:    "adam",
		Loss:         "binary_crossentropy",
		Metrics:      []string{"accuracy"},
		ImageSize:    []int{8, 8, 1},
		BatchSize:    4,
		Epochs:       2,
		LearningRate: 0.01,
	}, nil
}

func setupRouter(repo ports.RunRepository, opts services.PipelineOptions, loader services.ParamsLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := services.NewRunService(repo, mlbackend.New(), opts, loader)
	h := New(svc)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging())
	h.RegisterRoutes(r.Group(apiBase))
	return r
}

func pipelineOptions(t *testing.T) services.PipelineOptions {
	src := t.TempDir()
	testutil.WriteImageDataset(t, src, map[string]int{"NORMAL": 4, "PNEUMONIA": 4}, 8)
	return services.PipelineOptions{
		Name:                "xray",
		ArtifactRoot:        t.TempDir(),
		SourceDir:           src,
		TrainTestSplitRatio: 0.25,
		Seed:                1,
		MinImagesPerClass:   1,
		ExpectedClasses:     2,
		HiddenUnits:         4,
		ExpectedAccuracy:    0,
		OverfitThreshold:    1,
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerRun(t *testing.T) {
	r := setupRouter(nil, pipelineOptions(t), testParams)

	w := serve(r, http.MethodPost, apiBase+"/runs")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	var resp dto.TriggerRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, "SUCCEEDED", resp.Run.Status)
	assert.Empty(t, resp.Error)
	assert.FileExists(t, resp.Run.TrainedModelPath)
	assert.NotNil(t, resp.Run.DurationMs)
}

func TestTriggerRun_GateFailure(t *testing.T) {
	opts := pipelineOptions(t)
	opts.ExpectedAccuracy = 1.1
	r := setupRouter(nil, opts, testParams)

	w := serve(r, http.MethodPost, apiBase+"/runs")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.TriggerRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, "FAILED", resp.Run.Status)
	assert.Equal(t, "model_trainer", resp.Run.Stage)
	assert.Contains(t, resp.Error, "less than expected accuracy")
}

func TestTriggerRun_InvalidParams(t *testing.T) {
	r := setupRouter(nil, pipelineOptions(t), func() (domain.Params, error) {
		return domain.Params{}, domain.ErrInvalidParams
	})

	hook := logtest.NewGlobal()
	defer hook.Reset()

	req, _ := http.NewRequest(http.MethodPost, apiBase+"/runs", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(middleware.HeaderRequestID))

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "pipeline run failed" {
			assert.Equal(t, "req-123", e.Data["request_id"])
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestListRuns(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	r := setupRouter(repo, services.PipelineOptions{}, testParams)

	acc := 0.9
	finished := time.Date(2024, 3, 9, 14, 6, 7, 0, time.UTC)
	runs := []*domain.PipelineRun{{
		ID: uuid.New(), PipelineName: "xray", Status: domain.RunStatusSucceeded, Stage: domain.StageModelTrainer,
		TrainAccuracy: &acc, TestAccuracy: &acc,
		StartedAt: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC), FinishedAt: &finished,
	}}
	repo.On("List", mock.Anything, ports.RunListFilter{Status: "SUCCEEDED", Limit: 10, Offset: 0}).Return(runs, 1, nil)

	w := serve(r, http.MethodGet, apiBase+"/runs?limit=10&status=SUCCEEDED")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(60000), *resp.Items[0].DurationMs)
	assert.Equal(t, "2024-03-09T14:06:07Z", *resp.Items[0].FinishedAt)
	assert.Equal(t, 1, resp.NextOffset)
}

func TestListRuns_ReportsClampedPaging(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	r := setupRouter(repo, services.PipelineOptions{}, testParams)

	runs := []*domain.PipelineRun{{ID: uuid.New(), Status: domain.RunStatusFailed}}
	repo.On("List", mock.Anything, ports.RunListFilter{Limit: 100, Offset: 0}).Return(runs, 1, nil)

	w := serve(r, http.MethodGet, apiBase+"/runs?limit=1000&offset=-5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.PageSize)
	assert.Equal(t, 1, resp.NextOffset)
	repo.AssertExpectations(t)
}

func TestListRuns_InvalidStatus(t *testing.T) {
	r := setupRouter(new(testutil.MockRunRepo), services.PipelineOptions{}, testParams)

	w := serve(r, http.MethodGet, apiBase+"/runs?status=DONE")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRuns_StoreDisabled(t *testing.T) {
	r := setupRouter(nil, services.PipelineOptions{}, testParams)

	w := serve(r, http.MethodGet, apiBase+"/runs")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetRun(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	r := setupRouter(repo, services.PipelineOptions{}, testParams)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&domain.PipelineRun{ID: id, Status: domain.RunStatusRunning}, nil)

	w := serve(r, http.MethodGet, apiBase+"/runs/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "RUNNING", resp.Status)
	assert.Nil(t, resp.FinishedAt)
}

func TestGetRun_NotFound(t *testing.T) {
	repo := new(testutil.MockRunRepo)
	r := setupRouter(repo, services.PipelineOptions{}, testParams)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	w := serve(r, http.MethodGet, apiBase+"/runs/"+id.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRun_InvalidID(t *testing.T) {
	r := setupRouter(new(testutil.MockRunRepo), services.PipelineOptions{}, testParams)

	w := serve(r, http.MethodGet, apiBase+"/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrPipelineBusy, http.StatusConflict},
		{domain.Wrap(domain.StageModelTrainer, "overfit gate", domain.ErrModelOverfit), http.StatusUnprocessableEntity},
		{domain.Wrap(domain.StageDataValidation, "validate", domain.ErrDataValidationFailed), http.StatusUnprocessableEntity},
		{domain.ErrRunStoreDisabled, http.StatusServiceUnavailable},
		{filepath.ErrBadPattern, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
