package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"xray-pipeline/internal/core/domain"
	ports "xray-pipeline/internal/core/ports/output"
)

// PipelineOptions are the per-deployment knobs every run derives its stage
// configs from.
type PipelineOptions struct {
	Name                string
	ArtifactRoot        string
	SourceDir           string
	TrainTestSplitRatio float64
	Seed                int64
	MinImagesPerClass   int
	ExpectedClasses     int
	HiddenUnits         int
	TrainedModelPath    string
	ExpectedAccuracy    float64
	OverfitThreshold    float64
}

// TrainingPipeline runs ingestion, validation, base model preparation and
// training in order. The first failing stage aborts the run.
type TrainingPipeline struct {
	opts    PipelineOptions
	params  domain.Params
	backend ports.ModelBackend
	runs    ports.RunRepository
	now     func() time.Time

	cfg domain.TrainingPipelineConfig
	run *domain.PipelineRun
}

// NewTrainingPipeline pins the run's ID and artifact directory. runs may be
// nil, in which case nothing is recorded.
func NewTrainingPipeline(opts PipelineOptions, params domain.Params, backend ports.ModelBackend, runs ports.RunRepository, now func() time.Time) *TrainingPipeline {
	if now == nil {
		now = time.Now
	}
	return &TrainingPipeline{
		opts:    opts,
		params:  params,
		backend: backend,
		runs:    runs,
		now:     now,
		cfg:     domain.NewTrainingPipelineConfig(opts.Name, opts.ArtifactRoot, now(), uuid.New()),
	}
}

func (p *TrainingPipeline) Config() domain.TrainingPipelineConfig {
	return p.cfg
}

// Run returns a copy of the run record, or nil before RunPipeline starts.
func (p *TrainingPipeline) Run() *domain.PipelineRun {
	if p.run == nil {
		return nil
	}
	cp := *p.run
	return &cp
}

func (p *TrainingPipeline) StartDataIngestion(ctx context.Context) (domain.DataIngestionArtifact, error) {
	log.Info("starting data ingestion")
	cfg := domain.NewDataIngestionConfig(p.cfg, p.opts.SourceDir, p.opts.TrainTestSplitRatio, p.opts.Seed)
	return NewDataIngestion(cfg).InitiateDataIngestion(ctx)
}

func (p *TrainingPipeline) StartDataValidation(ctx context.Context, ingestion domain.DataIngestionArtifact) (domain.DataValidationArtifact, error) {
	log.Info("starting data validation")
	cfg := domain.NewDataValidationConfig(p.cfg, p.opts.MinImagesPerClass, p.opts.ExpectedClasses)
	return NewDataValidation(cfg, ingestion).InitiateDataValidation(ctx)
}

func (p *TrainingPipeline) PrepareBaseModel(ctx context.Context) (domain.BaseModelArtifact, error) {
	log.Info("preparing base model")
	cfg := domain.NewBaseModelConfig(p.cfg, p.opts.HiddenUnits, p.opts.Seed)
	return NewBaseModel(cfg, p.params, p.backend).GetBaseModel(ctx)
}

func (p *TrainingPipeline) StartModelTraining(ctx context.Context, ingestion domain.DataIngestionArtifact, baseModel domain.BaseModelArtifact) (domain.ModelTrainerArtifact, error) {
	log.Info("starting model training")
	cfg := domain.NewModelTrainerConfig(p.cfg, p.opts.TrainedModelPath, p.opts.ExpectedAccuracy, p.opts.OverfitThreshold)
	cfg.Seed = p.opts.Seed
	trainer, err := NewModelTrainer(cfg, baseModel, ingestion, p.params, p.backend)
	if err != nil {
		return domain.ModelTrainerArtifact{}, err
	}
	return trainer.InitiateModelTrainer(ctx)
}

// RunPipeline executes every stage and returns the trained model artifact.
func (p *TrainingPipeline) RunPipeline(ctx context.Context) (domain.ModelTrainerArtifact, error) {
	p.run = domain.NewPipelineRun(p.cfg, p.now())
	p.record(ctx, true)

	logger := log.WithFields(log.Fields{
		"run_id":       p.run.ID,
		"pipeline":     p.cfg.PipelineName,
		"artifact_dir": p.cfg.ArtifactDir,
	})
	logger.Info("training pipeline started")

	art, err := p.runStages(ctx)

	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		p.run.MarkFailed(err, p.now())
		p.record(finishCtx, false)
		logger.WithError(err).WithField("stage", p.run.Stage).Error("training pipeline failed")
		return domain.ModelTrainerArtifact{}, err
	}
	p.run.MarkSucceeded(art, p.now())
	p.record(finishCtx, false)
	logger.WithFields(log.Fields{
		"model":          art.TrainedModelFilePath,
		"train_accuracy": art.TrainAccuracy,
		"test_accuracy":  art.TestAccuracy,
	}).Info("training pipeline completed")
	return art, nil
}

func (p *TrainingPipeline) runStages(ctx context.Context) (domain.ModelTrainerArtifact, error) {
	var none domain.ModelTrainerArtifact

	if err := p.enter(ctx, domain.StageDataIngestion); err != nil {
		return none, err
	}
	ingestion, err := p.StartDataIngestion(ctx)
	if err != nil {
		return none, err
	}

	if err := p.enter(ctx, domain.StageDataValidation); err != nil {
		return none, err
	}
	if _, err := p.StartDataValidation(ctx, ingestion); err != nil {
		return none, err
	}

	if err := p.enter(ctx, domain.StageBaseModel); err != nil {
		return none, err
	}
	baseModel, err := p.PrepareBaseModel(ctx)
	if err != nil {
		return none, err
	}

	if err := p.enter(ctx, domain.StageModelTrainer); err != nil {
		return none, err
	}
	return p.StartModelTraining(ctx, ingestion, baseModel)
}

func (p *TrainingPipeline) enter(ctx context.Context, stage domain.Stage) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(stage, "start", err)
	}
	p.run.EnterStage(stage)
	p.record(ctx, false)
	return nil
}

// record persists the run. Store failures never fail the pipeline.
func (p *TrainingPipeline) record(ctx context.Context, create bool) {
	if p.runs == nil {
		return
	}
	var err error
	if create {
		err = p.runs.Create(ctx, p.run)
	} else {
		err = p.runs.Update(ctx, p.run)
	}
	if err != nil {
		log.WithError(err).WithField("run_id", p.run.ID).Warn("failed to record pipeline run")
	}
}
