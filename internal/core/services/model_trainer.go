package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"xray-pipeline/internal/core/domain"
	ports "xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/ml"
)

// Training augmentation. Shear is in degrees.
const (
	Rescale    = 1.0 / 255
	ShearRange = 0.2
	ZoomRange  = 0.2
)

// ModelTrainer fits the base model and accepts it only if it passes both
// the accuracy gate and the overfitting gate.
type ModelTrainer struct {
	cfg       domain.ModelTrainerConfig
	baseModel domain.BaseModelArtifact
	ingestion domain.DataIngestionArtifact
	params    domain.Params
	backend   ports.ModelBackend
}

func NewModelTrainer(cfg domain.ModelTrainerConfig, baseModel domain.BaseModelArtifact, ingestion domain.DataIngestionArtifact, params domain.Params, backend ports.ModelBackend) (*ModelTrainer, error) {
	if backend == nil {
		return nil, domain.Wrap(domain.StageModelTrainer, "init", errors.New("model backend is required"))
	}
	if err := params.Validate(); err != nil {
		return nil, domain.Wrap(domain.StageModelTrainer, "init", err)
	}
	return &ModelTrainer{
		cfg:       cfg,
		baseModel: baseModel,
		ingestion: ingestion,
		params:    params,
		backend:   backend,
	}, nil
}

// InitiateModelTrainer compiles and fits the base model. The train flow reads
// the ingestion TrainFilePath with augmentation; the test flow reads the
// held-out TestFilePath with rescaling only, and is the one scored against
// the overfit threshold. The model is saved only when both gates pass.
func (t *ModelTrainer) InitiateModelTrainer(ctx context.Context) (domain.ModelTrainerArtifact, error) {
	const stage = domain.StageModelTrainer
	var none domain.ModelTrainerArtifact

	model, err := t.backend.LoadModel(t.baseModel.BaseModelPath)
	if err != nil {
		return none, domain.Wrap(stage, "load base model", err)
	}
	err = model.Compile(ports.CompileOptions{
		Optimizer:    t.params.Optimizer,
		Loss:         t.params.Loss,
		Metrics:      t.params.Metrics,
		LearningRate: t.params.LearningRate,
	})
	if err != nil {
		return none, domain.Wrap(stage, "compile", err)
	}

	trainAug := ports.Augmentation{Rescale: Rescale}
	if t.params.Augmentation {
		trainAug = ports.Augmentation{
			Rescale:        Rescale,
			ShearRange:     ShearRange,
			ZoomRange:      ZoomRange,
			HorizontalFlip: true,
		}
	}
	trainFlow, err := t.backend.FlowFromDirectory(t.ingestion.TrainFilePath, t.flowOptions(true, trainAug))
	if err != nil {
		return none, domain.Wrap(stage, "train generator", err)
	}
	testFlow, err := t.backend.FlowFromDirectory(t.ingestion.TestFilePath, t.flowOptions(false, ports.Augmentation{Rescale: Rescale}))
	if err != nil {
		return none, domain.Wrap(stage, "test generator", err)
	}

	log.WithFields(log.Fields{
		"epochs":     t.params.Epochs,
		"batch_size": t.params.BatchSize,
		"optimizer":  t.params.Optimizer,
		"train":      trainFlow.Samples(),
		"test":       testFlow.Samples(),
	}).Info("training started")
	if _, err := model.Fit(ctx, trainFlow, testFlow, t.params.Epochs); err != nil {
		return none, domain.Wrap(stage, "fit", err)
	}

	trainAcc, err := accuracy(ctx, model, trainFlow)
	if err != nil {
		return none, domain.Wrap(stage, "score train", err)
	}
	log.WithField("train_accuracy", trainAcc).Info("train accuracy")
	if trainAcc < t.cfg.ExpectedAccuracy {
		return none, domain.Wrap(stage, "accuracy gate", fmt.Errorf("%w: %.4f < %.4f",
			domain.ErrAccuracyBelowExpected, trainAcc, t.cfg.ExpectedAccuracy))
	}

	testAcc, err := accuracy(ctx, model, testFlow)
	if err != nil {
		return none, domain.Wrap(stage, "score test", err)
	}
	log.WithField("test_accuracy", testAcc).Info("test accuracy")
	if gap := math.Abs(trainAcc - testAcc); gap > t.cfg.OverfitThreshold {
		return none, domain.Wrap(stage, "overfit gate", fmt.Errorf("%w: |%.4f - %.4f| = %.4f > %.4f",
			domain.ErrModelOverfit, trainAcc, testAcc, gap, t.cfg.OverfitThreshold))
	}

	if err := model.Save(t.cfg.TrainedModelFilePath); err != nil {
		return none, domain.Wrap(stage, "save model", err)
	}
	log.WithField("path", t.cfg.TrainedModelFilePath).Info("trained model saved")

	return domain.ModelTrainerArtifact{
		TrainedModelFilePath: t.cfg.TrainedModelFilePath,
		TrainAccuracy:        trainAcc,
		TestAccuracy:         testAcc,
	}, nil
}

func (t *ModelTrainer) flowOptions(shuffle bool, aug ports.Augmentation) ports.FlowOptions {
	return ports.FlowOptions{
		TargetSize:   t.params.TargetSize(),
		Channels:     t.params.Channels(),
		BatchSize:    t.params.BatchSize,
		ClassMode:    ml.ClassModeBinary,
		Shuffle:      shuffle,
		Seed:         t.cfg.Seed,
		Augmentation: aug,
	}
}

// accuracy predicts over flow and scores the 0.5-thresholded labels.
func accuracy(ctx context.Context, model ports.Classifier, flow ports.DataFlow) (float64, error) {
	probs, err := model.Predict(ctx, flow)
	if err != nil {
		return 0, err
	}
	score, err := ml.GetClassificationScore(flow.Classes(), ml.ThresholdLabels(probs, ml.PredictionThreshold))
	if err != nil {
		return 0, err
	}
	return score.Accuracy, nil
}
