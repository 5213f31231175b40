package dto

import (
	"time"

	"github.com/google/uuid"

	"xray-pipeline/internal/core/domain"
)

const timeFormat = time.RFC3339

type RunResponse struct {
	ID               uuid.UUID `json:"id"`
	PipelineName     string    `json:"pipeline_name"`
	Status           string    `json:"status"`
	Stage            string    `json:"stage"`
	ArtifactDir      string    `json:"artifact_dir"`
	TrainedModelPath string    `json:"trained_model_path,omitempty"`
	TrainAccuracy    *float64  `json:"train_accuracy"`
	TestAccuracy     *float64  `json:"test_accuracy"`
	Error            string    `json:"error,omitempty"`
	StartedAt        string    `json:"started_at"`
	FinishedAt       *string   `json:"finished_at"`
	DurationMs       *int64    `json:"duration_ms,omitempty"`
}

type ListRunsResponse struct {
	Items      []RunResponse `json:"items"`
	Total      int           `json:"total"`
	PageSize   int           `json:"page_size"`
	NextOffset int           `json:"next_offset"`
}

// TriggerRunResponse carries the final run record, plus the failure when the
// pipeline did not finish successfully.
type TriggerRunResponse struct {
	Run   *RunResponse `json:"run,omitempty"`
	Error string       `json:"error,omitempty"`
}

func ToRunResponse(r *domain.PipelineRun) RunResponse {
	resp := RunResponse{
		ID:               r.ID,
		PipelineName:     r.PipelineName,
		Status:           string(r.Status),
		Stage:            string(r.Stage),
		ArtifactDir:      r.ArtifactDir,
		TrainedModelPath: r.TrainedModelPath,
		TrainAccuracy:    r.TrainAccuracy,
		TestAccuracy:     r.TestAccuracy,
		Error:            r.Error,
		StartedAt:        r.StartedAt.Format(timeFormat),
	}
	if r.FinishedAt != nil {
		s := r.FinishedAt.Format(timeFormat)
		d := r.FinishedAt.Sub(r.StartedAt).Milliseconds()
		resp.FinishedAt = &s
		resp.DurationMs = &d
	}
	return resp
}
