package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Artifact tree layout under <artifact root>/<timestamp>_<run id prefix>.
const (
	TimestampLayout = "01_02_2006_15_04_05"
	RunIDPrefixLen  = 8

	DataIngestionDirName = "data_ingestion"
	FeatureStoreDirName  = "feature_store"
	TrainDirName         = "train"
	TestDirName          = "test"

	DataValidationDirName = "data_validation"
	ReportFileName        = "report.yaml"

	BaseModelDirName  = "base_model"
	BaseModelFileName = "base_model.xray"

	ModelTrainerDirName  = "model_trainer"
	TrainedModelDirName  = "trained_model"
	TrainedModelFileName = "model.xray"
)

// TrainingPipelineConfig is the root every stage config derives from.
type TrainingPipelineConfig struct {
	PipelineName string
	RunID        uuid.UUID
	ArtifactDir  string
	Timestamp    string
}

// NewTrainingPipelineConfig names the run's artifact directory after both
// the start time and the run ID, so runs started in the same second never
// share a tree.
func NewTrainingPipelineConfig(name, artifactRoot string, now time.Time, runID uuid.UUID) TrainingPipelineConfig {
	ts := now.Format(TimestampLayout)
	return TrainingPipelineConfig{
		PipelineName: name,
		RunID:        runID,
		ArtifactDir:  filepath.Join(artifactRoot, ts+"_"+runID.String()[:RunIDPrefixLen]),
		Timestamp:    ts,
	}
}

type DataIngestionConfig struct {
	SourceDir           string
	DataIngestionDir    string
	FeatureStoreDir     string
	TrainFilePath       string
	TestFilePath        string
	TrainTestSplitRatio float64
	Seed                int64
}

func NewDataIngestionConfig(p TrainingPipelineConfig, sourceDir string, splitRatio float64, seed int64) DataIngestionConfig {
	dir := filepath.Join(p.ArtifactDir, DataIngestionDirName)
	store := filepath.Join(dir, FeatureStoreDirName)
	return DataIngestionConfig{
		SourceDir:           sourceDir,
		DataIngestionDir:    dir,
		FeatureStoreDir:     store,
		TrainFilePath:       filepath.Join(store, TrainDirName),
		TestFilePath:        filepath.Join(store, TestDirName),
		TrainTestSplitRatio: splitRatio,
		Seed:                seed,
	}
}

type DataValidationConfig struct {
	DataValidationDir string
	ReportFilePath    string
	MinImagesPerClass int
	ExpectedClasses   int
}

func NewDataValidationConfig(p TrainingPipelineConfig, minImagesPerClass, expectedClasses int) DataValidationConfig {
	dir := filepath.Join(p.ArtifactDir, DataValidationDirName)
	return DataValidationConfig{
		DataValidationDir: dir,
		ReportFilePath:    filepath.Join(dir, ReportFileName),
		MinImagesPerClass: minImagesPerClass,
		ExpectedClasses:   expectedClasses,
	}
}

type BaseModelConfig struct {
	BaseModelDir  string
	BaseModelPath string
	HiddenUnits   int
	Seed          int64
}

func NewBaseModelConfig(p TrainingPipelineConfig, hiddenUnits int, seed int64) BaseModelConfig {
	dir := filepath.Join(p.ArtifactDir, BaseModelDirName)
	return BaseModelConfig{
		BaseModelDir:  dir,
		BaseModelPath: filepath.Join(dir, BaseModelFileName),
		HiddenUnits:   hiddenUnits,
		Seed:          seed,
	}
}

type ModelTrainerConfig struct {
	ModelTrainerDir      string
	TrainedModelFilePath string
	ExpectedAccuracy     float64
	OverfitThreshold     float64
	// Seed drives the train flow shuffle and augmentation draws.
	Seed int64
}

// NewModelTrainerConfig derives the trainer paths. A non-empty
// trainedModelPath pins the output file outside the run's artifact tree.
func NewModelTrainerConfig(p TrainingPipelineConfig, trainedModelPath string, expectedAccuracy, overfitThreshold float64) ModelTrainerConfig {
	dir := filepath.Join(p.ArtifactDir, ModelTrainerDirName)
	if trainedModelPath == "" {
		trainedModelPath = filepath.Join(dir, TrainedModelDirName, TrainedModelFileName)
	}
	return ModelTrainerConfig{
		ModelTrainerDir:      dir,
		TrainedModelFilePath: trainedModelPath,
		ExpectedAccuracy:     expectedAccuracy,
		OverfitThreshold:     overfitThreshold,
	}
}
