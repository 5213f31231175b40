package domain

// Artifacts are the values stages hand to each other. They are plain
// comparable structs passed by value, so a stage can never mutate an
// artifact it did not create.

// DataIngestionArtifact points at the staged train/test image trees.
type DataIngestionArtifact struct {
	TrainFilePath string `json:"train_file_path" yaml:"train_file_path"`
	TestFilePath  string `json:"test_file_path" yaml:"test_file_path"`
}

// DataValidationArtifact is the outcome of checking the staged image trees.
type DataValidationArtifact struct {
	ValidationStatus bool   `json:"validation_status" yaml:"validation_status"`
	ValidTrainPath   string `json:"valid_train_path" yaml:"valid_train_path"`
	ValidTestPath    string `json:"valid_test_path" yaml:"valid_test_path"`
	ReportFilePath   string `json:"report_file_path" yaml:"report_file_path"`
}

// BaseModelArtifact references the untrained network on disk.
type BaseModelArtifact struct {
	BaseModelPath string `json:"base_model_path" yaml:"base_model_path"`
}

// ModelTrainerArtifact is the terminal output of a pipeline run.
type ModelTrainerArtifact struct {
	TrainedModelFilePath string  `json:"trained_model_file_path" yaml:"trained_model_file_path"`
	TrainAccuracy        float64 `json:"train_accuracy" yaml:"train_accuracy"`
	TestAccuracy         float64 `json:"test_accuracy" yaml:"test_accuracy"`
}
