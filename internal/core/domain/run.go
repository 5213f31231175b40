package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// PipelineRun is the bookkeeping record of one pipeline invocation.
type PipelineRun struct {
	ID               uuid.UUID  `json:"id"`
	PipelineName     string     `json:"pipeline_name"`
	Status           RunStatus  `json:"status"`
	Stage            Stage      `json:"stage"`
	ArtifactDir      string     `json:"artifact_dir"`
	TrainedModelPath string     `json:"trained_model_path"`
	TrainAccuracy    *float64   `json:"train_accuracy"`
	TestAccuracy     *float64   `json:"test_accuracy"`
	Error            string     `json:"error"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
}

// NewPipelineRun starts the record for cfg's run; a config without a run ID
// gets a fresh one.
func NewPipelineRun(cfg TrainingPipelineConfig, now time.Time) *PipelineRun {
	id := cfg.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &PipelineRun{
		ID:           id,
		PipelineName: cfg.PipelineName,
		Status:       RunStatusRunning,
		ArtifactDir:  cfg.ArtifactDir,
		StartedAt:    now,
	}
}

func (r *PipelineRun) EnterStage(s Stage) {
	r.Stage = s
}

func (r *PipelineRun) MarkSucceeded(art ModelTrainerArtifact, now time.Time) {
	train, test := art.TrainAccuracy, art.TestAccuracy
	r.Status = RunStatusSucceeded
	r.TrainedModelPath = art.TrainedModelFilePath
	r.TrainAccuracy = &train
	r.TestAccuracy = &test
	r.Error = ""
	r.FinishedAt = &now
}

func (r *PipelineRun) MarkFailed(err error, now time.Time) {
	r.Status = RunStatusFailed
	if s := StageOf(err); s != "" {
		r.Stage = s
	}
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &now
}

func (r *PipelineRun) IsFinished() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}
