package ports

import "context"

// Augmentation is applied per image each time it is read.
type Augmentation struct {
	Rescale        float64
	ShearRange     float64 // degrees
	ZoomRange      float64
	HorizontalFlip bool
}

type FlowOptions struct {
	TargetSize   [2]int // height, width
	Channels     int
	BatchSize    int
	ClassMode    string
	Shuffle      bool
	Seed         int64
	Augmentation Augmentation
}

// DataFlow is a batched view over a <class>/<image> directory tree.
type DataFlow interface {
	// Len is the number of batches per epoch.
	Len() int
	Samples() int
	// Classes are the true labels in prediction order.
	Classes() []int
	ClassIndices() map[string]int
}

type CompileOptions struct {
	Optimizer    string
	Loss         string
	Metrics      []string
	LearningRate float64
}

type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// Classifier is a binary image classifier producing one probability per sample.
type Classifier interface {
	Compile(opts CompileOptions) error
	Fit(ctx context.Context, train, validation DataFlow, epochs int) ([]EpochStats, error)
	Predict(ctx context.Context, flow DataFlow) ([]float64, error)
	Save(path string) error
}

type BaseModelSpec struct {
	InputShape  []int // height, width, channels
	HiddenUnits int
	Seed        int64
}

// ModelBackend is the deep-learning framework the pipeline drives.
type ModelBackend interface {
	NewBaseModel(spec BaseModelSpec) (Classifier, error)
	LoadModel(path string) (Classifier, error)
	FlowFromDirectory(dir string, opts FlowOptions) (DataFlow, error)
}
